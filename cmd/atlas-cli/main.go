package main

import (
	"errors"
	"fmt"
	"os"

	"atlaschain/rpc"
)

// Exit codes: 0 ok, 1 transport error, 2 application error.
const (
	exitOK = iota
	exitTransport
	exitApplication
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitApplication)
	}

	switch os.Args[1] {
	case "submit":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Error: submit requires a node address and content.")
			printUsage()
			os.Exit(exitApplication)
		}
		os.Exit(submit(os.Args[2], os.Args[3]))
	case "status":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: status requires a node address.")
			printUsage()
			os.Exit(exitApplication)
		}
		os.Exit(status(os.Args[2]))
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q.\n", os.Args[1])
		printUsage()
		os.Exit(exitApplication)
	}
}

func submit(nodeAddr, content string) int {
	client := rpc.NewClient(nodeAddr)
	proposalID, err := client.Submit([]byte(content))
	if err != nil {
		return report(err)
	}
	fmt.Printf("proposal accepted: %s\n", proposalID)
	return exitOK
}

func status(nodeAddr string) int {
	client := rpc.NewClient(nodeAddr)
	st, err := client.Status()
	if err != nil {
		return report(err)
	}
	fmt.Printf("node_id:   %s\n", st.NodeID)
	fmt.Printf("leader_id: %s\n", st.LeaderID)
	fmt.Printf("height:    %d\n", st.Height)
	fmt.Printf("view:      %d\n", st.View)
	return exitOK
}

func report(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var transport *rpc.TransportError
	if errors.As(err, &transport) {
		return exitTransport
	}
	return exitApplication
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  atlas-cli submit <node_addr> <content>")
	fmt.Println("  atlas-cli status <node_addr>")
}
