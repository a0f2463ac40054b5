package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"atlaschain/core/types"
)

// maxSegmentBytes bounds one binlog segment before rotation.
const maxSegmentBytes = 64 << 20

// Location addresses one record inside the binlog.
type Location struct {
	FileID uint64 `json:"file_id"`
	Offset uint64 `json:"offset"`
	Length uint64 `json:"length"`
}

// Binlog is the append-only proposal log, segmented by file. Records are
// newline-delimited JSON; the framing is uniform within a deployment. The
// binlog is the sole source of truth for recovery.
type Binlog struct {
	mu     sync.Mutex
	dir    string
	file   *os.File
	fileID uint64
	offset uint64
}

// OpenBinlog opens the segment directory, picks the highest-numbered file
// and positions the write offset at its end.
func OpenBinlog(dataDir string) (*Binlog, error) {
	dir := filepath.Join(dataDir, "binlog")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create binlog dir: %w", err)
	}

	fileID, err := highestSegment(dir)
	if err != nil {
		return nil, err
	}

	b := &Binlog{dir: dir}
	if err := b.openSegment(fileID); err != nil {
		return nil, err
	}
	return b, nil
}

func highestSegment(dir string) (uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("scan binlog dir: %w", err)
	}
	var highest uint64
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".log") {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSuffix(name, ".log"), 10, 64)
		if err != nil {
			continue
		}
		if id > highest {
			highest = id
		}
	}
	return highest, nil
}

func segmentName(id uint64) string {
	return fmt.Sprintf("%05d.log", id)
}

func (b *Binlog) openSegment(id uint64) error {
	file, err := os.OpenFile(filepath.Join(b.dir, segmentName(id)), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open binlog segment: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	if b.file != nil {
		b.file.Close()
	}
	b.file = file
	b.fileID = id
	b.offset = uint64(info.Size())
	return nil
}

// Append serializes the proposal to a self-delimited record, writes it and
// flushes to disk before returning its location.
func (b *Binlog) Append(p *types.Proposal) (Location, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return Location{}, fmt.Errorf("serialize proposal: %w", err)
	}
	data = append(data, '\n')

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.offset > 0 && b.offset+uint64(len(data)) > maxSegmentBytes {
		if err := b.openSegment(b.fileID + 1); err != nil {
			return Location{}, err
		}
	}

	loc := Location{FileID: b.fileID, Offset: b.offset, Length: uint64(len(data))}
	if _, err := b.file.Write(data); err != nil {
		return Location{}, fmt.Errorf("write binlog record: %w", err)
	}
	if err := b.file.Sync(); err != nil {
		return Location{}, fmt.Errorf("sync binlog: %w", err)
	}
	b.offset += uint64(len(data))
	return loc, nil
}

// ReadAt reads back one record by location.
func (b *Binlog) ReadAt(loc Location) (*types.Proposal, error) {
	file, err := os.Open(filepath.Join(b.dir, segmentName(loc.FileID)))
	if err != nil {
		return nil, fmt.Errorf("open binlog segment %d: %w", loc.FileID, err)
	}
	defer file.Close()

	buf := make([]byte, loc.Length)
	if _, err := file.ReadAt(buf, int64(loc.Offset)); err != nil {
		return nil, fmt.Errorf("read binlog record: %w", err)
	}
	p := &types.Proposal{}
	if err := json.Unmarshal(buf, p); err != nil {
		return nil, fmt.Errorf("decode binlog record: %w", err)
	}
	return p, nil
}

// ReadAll replays every record of every segment in append order, reporting
// each record's location alongside the decoded proposal.
func (b *Binlog) ReadAll() ([]*types.Proposal, []Location, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("scan binlog dir: %w", err)
	}
	var ids []uint64
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".log") {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSuffix(name, ".log"), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var proposals []*types.Proposal
	var locations []Location
	for _, id := range ids {
		if err := b.readSegment(id, &proposals, &locations); err != nil {
			return nil, nil, err
		}
	}
	return proposals, locations, nil
}

func (b *Binlog) readSegment(id uint64, proposals *[]*types.Proposal, locations *[]Location) error {
	file, err := os.Open(filepath.Join(b.dir, segmentName(id)))
	if err != nil {
		return fmt.Errorf("open binlog segment %d: %w", id, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1<<20), 16<<20)
	var offset uint64
	for scanner.Scan() {
		line := scanner.Bytes()
		length := uint64(len(line)) + 1
		if len(line) > 0 {
			p := &types.Proposal{}
			if err := json.Unmarshal(line, p); err != nil {
				// A torn tail record from a crash mid-write; everything
				// before it is intact.
				return nil
			}
			*proposals = append(*proposals, p)
			*locations = append(*locations, Location{FileID: id, Offset: offset, Length: length})
		}
		offset += length
	}
	return scanner.Err()
}

// Close releases the active segment handle.
func (b *Binlog) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.file == nil {
		return nil
	}
	err := b.file.Close()
	b.file = nil
	return err
}
