package binformat

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/teleerr"
)

// Reader replays Events from a file written by Writer. It scans the
// file once at open time to build a seekable event index, so
// AvailableEvents and Skip are exact and cheap.
type Reader struct {
	name string
	sensorIDs []int32
	f *os.File
	br *bufio.Reader

	offsets []int64
	cur int
	needSeek bool
}

// NewReader opens path for replay, expecting events with exactly the
// given sensor ids, in that order, since the persisted per-sensor
// streams carry no sensor id of their own.
func NewReader(path string, sensorIDs []int32) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("binformat: open %s: %w", path, err)
	}
	ids := make([]int32, len(sensorIDs))
	copy(ids, sensorIDs)
	r := &Reader{name: path, sensorIDs: ids, f: f}

	offsets, err := scanOffsets(f, len(ids))
	if err != nil {
		f.Close()
		return nil, err
	}
	r.offsets = offsets

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("binformat: seek %s: %w", path, err)
	}
	r.br = bufio.NewReader(f)
	return r, nil
}

// scanOffsets reads once through the file, recording the byte offset of
// each event record, without allocating the decoded Event contents.
func scanOffsets(f *os.File, numSensors int) ([]int64, error) {
	br := bufio.NewReader(f)
	var offsets []int64
	var pos int64
	for {
		start := pos
		var hdr wireGlobalEvent
		if err := binary.Read(br, byteOrder, &hdr); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("binformat: scan event header at offset %d: %w", start, err)
		}
		pos += wireSize(hdr)

		n, err := readCount(br, &pos)
		if err != nil {
			return nil, err
		}
		if err := skipN(br, &pos, n, wireSize(wireGlobalTrack{})); err != nil {
			return nil, err
		}

		for s := 0; s < numSensors; s++ {
			n, err := readCount(br, &pos)
			if err != nil {
				return nil, err
			}
			if err := skipN(br, &pos, n, wireSize(wireHit{})); err != nil {
				return nil, err
			}

			n, err = readCount(br, &pos)
			if err != nil {
				return nil, err
			}
			if err := skipN(br, &pos, n, wireSize(wireCluster{})); err != nil {
				return nil, err
			}

			n, err = readCount(br, &pos)
			if err != nil {
				return nil, err
			}
			if err := skipN(br, &pos, n, wireSize(wireIntercept{})); err != nil {
				return nil, err
			}
		}

		offsets = append(offsets, start)
	}
	return offsets, nil
}

func wireSize(v interface{}) int64 { return int64(binary.Size(v)) }

func readCount(r io.Reader, pos *int64) (int32, error) {
	var n int32
	if err := binary.Read(r, byteOrder, &n); err != nil {
		return 0, fmt.Errorf("binformat: read count at offset %d: %w", *pos, err)
	}
	*pos += 4
	if n < 0 || n > MaxPerEvent {
		return 0, fmt.Errorf("binformat: stream count %d at offset %d exceeds cap %d", n, *pos, MaxPerEvent)
	}
	return n, nil
}

func skipN(r io.Reader, pos *int64, n int32, elemSize int64) error {
	total := int64(n) * elemSize
	if total == 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, total); err != nil {
		return fmt.Errorf("binformat: skip %d bytes at offset %d: %w", total, *pos, err)
	}
	*pos += total
	return nil
}

// Name implements pipeline.Reader.
func (r *Reader) Name() string { return r.name }

// NumSensors implements pipeline.Reader.
func (r *Reader) NumSensors() int { return len(r.sensorIDs) }

// AvailableEvents implements pipeline.Reader; the file is scanned up
// front so the count is always known.
func (r *Reader) AvailableEvents() (n int64, known bool) {
	return int64(len(r.offsets)), true
}

// Skip implements pipeline.Reader.
func (r *Reader) Skip(n int) error {
	if n < 0 {
		return fmt.Errorf("binformat: skip count must be >= 0, got %d", n)
	}
	next := r.cur + n
	if next > len(r.offsets) {
		return fmt.Errorf("binformat: skip %d from %d exceeds %d available events", n, r.cur, len(r.offsets))
	}
	r.cur = next
	r.needSeek = true
	return nil
}

// Read implements pipeline.Reader: clears ev and fully repopulates it
// from the next event record, or returns false at end of file.
func (r *Reader) Read(ev *event.Event) (bool, error) {
	if r.cur >= len(r.offsets) {
		return false, nil
	}
	if r.needSeek {
		if _, err := r.f.Seek(r.offsets[r.cur], io.SeekStart); err != nil {
			return false, fmt.Errorf("binformat: seek %s: %w", r.name, err)
		}
		r.br = bufio.NewReader(r.f)
		r.needSeek = false
	}

	var hdr wireGlobalEvent
	if err := binary.Read(r.br, byteOrder, &hdr); err != nil {
		return false, fmt.Errorf("binformat: read event header: %w", err)
	}
	ev.Clear(hdr.Frame, hdr.Timestamp)
	ev.Trigger = event.Trigger{Time: hdr.TriggerTime, Offset: hdr.TriggerOffset, Info: hdr.TriggerInfo, Phase: hdr.TriggerPhase}
	ev.Invalid = hdr.Invalid

	numTracks, err := readEventCount(r.br, hdr.Frame)
	if err != nil {
		return false, err
	}
	tracks := make([]event.Track, numTracks)
	for i := int32(0); i < numTracks; i++ {
		var wt wireGlobalTrack
		if err := binary.Read(r.br, byteOrder, &wt); err != nil {
			return false, fmt.Errorf("binformat: read track: %w", err)
		}
		tracks[i] = fromWireGlobalTrack(wt)
	}

	for _, sensorID := range r.sensorIDs {
		se := ev.SensorEvent(sensorID)
		if se == nil {
			return false, teleerr.NewEventFault(hdr.Frame, sensorID, "binformat: configured sensor missing from event")
		}

		numHits, err := readEventCount(r.br, hdr.Frame)
		if err != nil {
			return false, err
		}
		for i := int32(0); i < numHits; i++ {
			var wh wireHit
			if err := binary.Read(r.br, byteOrder, &wh); err != nil {
				return false, fmt.Errorf("binformat: read hit: %w", err)
			}
			se.Hits = append(se.Hits, fromWireHit(wh))
		}

		numClusters, err := readEventCount(r.br, hdr.Frame)
		if err != nil {
			return false, err
		}
		for i := int32(0); i < numClusters; i++ {
			var wc wireCluster
			if err := binary.Read(r.br, byteOrder, &wc); err != nil {
				return false, fmt.Errorf("binformat: read cluster: %w", err)
			}
			se.Clusters = append(se.Clusters, fromWireCluster(wc))
		}
		assignClusterHits(se)

		numIntercepts, err := readEventCount(r.br, hdr.Frame)
		if err != nil {
			return false, err
		}
		for i := int32(0); i < numIntercepts; i++ {
			var wi wireIntercept
			if err := binary.Read(r.br, byteOrder, &wi); err != nil {
				return false, fmt.Errorf("binformat: read intercept: %w", err)
			}
			se.SetLocalState(wi.TrackIndex, fromWireIntercept(wi))
		}
	}

	for i := range tracks {
		fillTrackClusters(ev, int32(i), &tracks[i])
		ev.Tracks = append(ev.Tracks, tracks[i])
	}

	r.cur++
	return true, nil
}

func readEventCount(r io.Reader, frame uint64) (int32, error) {
	var n int32
	if err := binary.Read(r, byteOrder, &n); err != nil {
		return 0, fmt.Errorf("binformat: read count: %w", err)
	}
	if n < 0 || n > MaxPerEvent {
		return 0, teleerr.NewEventFault(frame, -1, "binformat: stream count %d exceeds cap %d", n, MaxPerEvent)
	}
	return n, nil
}

// assignClusterHits reconstructs each cluster's Hits index list from
// the hit->cluster back-references carried on disk, since the wire
// format persists only the hit side of that cross-reference.
func assignClusterHits(se *event.SensorEvent) {
	for hi, h := range se.Hits {
		if h.Cluster == event.NoIndex || int(h.Cluster) >= len(se.Clusters) {
			continue
		}
		se.Clusters[h.Cluster].Hits = append(se.Clusters[h.Cluster].Hits, int32(hi))
	}
}

// fillTrackClusters reconstructs a track's cluster list from the
// cluster->track back-references already set by fromWireCluster, since
// the wire format persists only the cluster side of that
// cross-reference.
func fillTrackClusters(ev *event.Event, trackIdx int32, t *event.Track) {
	for _, se := range ev.Sensors {
		for ci := range se.Clusters {
			if se.Clusters[ci].Track == trackIdx {
				t.Clusters = append(t.Clusters, event.ClusterRef{SensorID: se.SensorID, Cluster: int32(ci)})
			}
		}
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if err := r.f.Close(); err != nil {
		return fmt.Errorf("binformat: close %s: %w", r.name, err)
	}
	return nil
}
