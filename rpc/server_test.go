package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"atlaschain/consensus/bft"
	"atlaschain/core"
	"atlaschain/core/types"
	"atlaschain/crypto"
	"atlaschain/ledger"
	"atlaschain/network"
	"atlaschain/storage"
)

type rpcFixture struct {
	server *httptest.Server
	node   *core.Node
	alice  *crypto.PrivateKey
	bob    *crypto.PrivateKey
}

func newRPCFixture(t *testing.T) *rpcFixture {
	t.Helper()

	validator, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	alice, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	bob, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	gen := &ledger.Genesis{Allocations: map[string]uint64{
		types.WalletAccount(alice.PubKey().Address().String()): 100000,
		ledger.IssuanceAccount:                                 1_000_000,
	}}
	store, err := ledger.Open(t.TempDir(), storage.NewMemDB(), gen, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	peers := network.NewPeerManager()
	engine, err := bft.NewEngine(peers, bft.QuorumPolicy{Fraction: 0.67, MinVoters: 1}, store)
	require.NoError(t, err)
	node := core.NewNode(validator, engine, store, peers, network.NewLoopbackPublisher())

	server := httptest.NewServer(NewServer(node, nil).Router())
	t.Cleanup(server.Close)
	return &rpcFixture{server: server, node: node, alice: alice, bob: bob}
}

func (f *rpcFixture) transferContent(t *testing.T, amount, nonce uint64) []byte {
	t.Helper()
	st, err := types.NewSignedTransaction(types.Transaction{
		To:        f.bob.PubKey().Address().String(),
		Amount:    uint256.NewInt(amount),
		Asset:     ledger.AtlasAssetID,
		Nonce:     nonce,
		Timestamp: 1700000000,
	}, f.alice)
	require.NoError(t, err)
	content, err := json.Marshal([]*types.SignedTransaction{st})
	require.NoError(t, err)
	return content
}

func TestSubmitEndpoint(t *testing.T) {
	f := newRPCFixture(t)

	body, err := json.Marshal(submitRequest{Content: string(f.transferContent(t, 1000, 1))})
	require.NoError(t, err)

	resp, err := http.Post(f.server.URL+"/submit", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out submitResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.ProposalID)
}

func TestSubmitRejectsGarbage(t *testing.T) {
	f := newRPCFixture(t)

	resp, err := http.Post(f.server.URL+"/submit", "application/json", bytes.NewReader([]byte("not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusEndpoint(t *testing.T) {
	f := newRPCFixture(t)

	resp, err := http.Get(f.server.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st core.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	require.Equal(t, f.node.ID(), st.NodeID)
}

func TestBalanceEndpoint(t *testing.T) {
	f := newRPCFixture(t)

	wallet := types.WalletAccount(f.alice.PubKey().Address().String())
	resp, err := http.Get(f.server.URL + "/balance/" + wallet)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out balanceResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "100000", out.Balances[ledger.AtlasAssetID])

	missing, err := http.Get(f.server.URL + "/balance/liability:wallet:nobody")
	require.NoError(t, err)
	defer missing.Body.Close()
	require.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestClientMapsErrors(t *testing.T) {
	f := newRPCFixture(t)

	client := NewClient(f.server.URL)
	st, err := client.Status()
	require.NoError(t, err)
	require.Equal(t, f.node.ID(), st.NodeID)

	proposalID, err := client.Submit(f.transferContent(t, 500, 1))
	require.NoError(t, err)
	require.NotEmpty(t, proposalID)

	// Unreachable node yields a transport error.
	dead := NewClient("127.0.0.1:1")
	_, err = dead.Status()
	require.Error(t, err)
	var transport *TransportError
	require.ErrorAs(t, err, &transport)
}
