package cluster

import (
	"testing"

	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/geometry"
)

func mustSensor(t *testing.T) *geometry.Sensor {
	t.Helper()
	s, err := geometry.NewSensor(1, "DUT", geometry.MeasurementValue, 100, 100, 1e-5, 1e-5, 1, 3e-4, 0.01, nil)
	if err != nil {
		t.Fatalf("NewSensor: %v", err)
	}
	return s
}

func TestProcessorSinglePixelClusterHasVarianceFloor(t *testing.T) {
	sensor := mustSensor(t)
	p := NewProcessor(sensor, Connectivity8)

	ev := event.NewEvent([]int32{1})
	ev.Clear(1, 0)
	se := ev.SensorEvent(1)
	se.AddHit(event.Hit{Col: 10, Row: 20, Value: 5, Region: -1})

	if err := p.Execute(ev); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(se.Clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(se.Clusters))
	}
	c := se.Clusters[0]
	if c.Size != 1 {
		t.Errorf("Size = %d, want 1", c.Size)
	}
	if c.CovPixel[0][0] != varianceFloor || c.CovPixel[1][1] != varianceFloor {
		t.Errorf("CovPixel = %v, want diag %v", c.CovPixel, varianceFloor)
	}
	if c.CentroidCol != 10 || c.CentroidRow != 20 {
		t.Errorf("centroid = (%v,%v), want (10,20)", c.CentroidCol, c.CentroidRow)
	}
}

func TestProcessorGroupsAdjacentHits(t *testing.T) {
	sensor := mustSensor(t)
	p := NewProcessor(sensor, Connectivity8)

	ev := event.NewEvent([]int32{1})
	ev.Clear(1, 0)
	se := ev.SensorEvent(1)
	// Two diagonally-adjacent hits (connected under 8-connectivity) plus
	// one isolated hit far away.
	se.AddHit(event.Hit{Col: 5, Row: 5, Value: 1, Region: -1})
	se.AddHit(event.Hit{Col: 6, Row: 6, Value: 1, Region: -1})
	se.AddHit(event.Hit{Col: 50, Row: 50, Value: 1, Region: -1})

	if err := p.Execute(ev); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(se.Clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(se.Clusters))
	}
	for _, h := range se.Hits {
		if h.Cluster == event.NoIndex {
			t.Errorf("hit (%d,%d) was not assigned to a cluster", h.Col, h.Row)
		}
	}
}

func TestProcessor4ConnectivitySplitsDiagonalHits(t *testing.T) {
	sensor := mustSensor(t)
	p := NewProcessor(sensor, Connectivity4)

	ev := event.NewEvent([]int32{1})
	ev.Clear(1, 0)
	se := ev.SensorEvent(1)
	se.AddHit(event.Hit{Col: 5, Row: 5, Value: 1, Region: -1})
	se.AddHit(event.Hit{Col: 6, Row: 6, Value: 1, Region: -1})

	if err := p.Execute(ev); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(se.Clusters) != 2 {
		t.Fatalf("expected 2 clusters under 4-connectivity, got %d", len(se.Clusters))
	}
}

func TestProcessorMissingSensorErrors(t *testing.T) {
	sensor := mustSensor(t)
	p := NewProcessor(sensor, Connectivity8)

	ev := event.NewEvent([]int32{2})
	ev.Clear(1, 0)

	if err := p.Execute(ev); err == nil {
		t.Fatal("expected error for missing sensor event")
	}
}
