package store

import (
	"path/filepath"
	"testing"

	"github.com/banshee-data/proteusgo/internal/geometry"
	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/mat"
)

func testGeometry() *geometry.Geometry {
	p0 := geometry.IdentityPlane(0, [3]float64{0, 0, 0})
	p1 := geometry.IdentityPlane(1, [3]float64{0, 0, 100})
	return geometry.NewGeometry([]*geometry.Plane{p0, p1}, [3]float64{0, 0, 1}, nil)
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "align.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateRunAndAppendIteration(t *testing.T) {
	db := openTestDB(t)

	run, err := db.CreateRun("LocalChi2Aligner", `{"damping":0.5}`, 1000)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if run.ID == "" {
		t.Fatal("CreateRun returned empty run ID")
	}

	geo := testGeometry()
	corrections := map[int32][6]float64{0: {0.001, 0, 0, 0, 0, 0}}
	if err := db.AppendIteration(run.ID, 0, geo, 12.5, true, 4, true, corrections, 1001); err != nil {
		t.Fatalf("AppendIteration: %v", err)
	}

	iters, err := db.ListIterations(run.ID)
	if err != nil {
		t.Fatalf("ListIterations: %v", err)
	}
	if len(iters) != 1 {
		t.Fatalf("len(iters) = %d, want 1", len(iters))
	}
	it := iters[0]
	if !it.HasChi2 || it.Chi2 != 12.5 {
		t.Errorf("Chi2 = %v, HasChi2 = %v, want 12.5/true", it.Chi2, it.HasChi2)
	}
	if !it.HasDof || it.Dof != 4 {
		t.Errorf("Dof = %v, HasDof = %v, want 4/true", it.Dof, it.HasDof)
	}
	wantCorrections := map[int32][6]float64{0: {0.001, 0, 0, 0, 0, 0}}
	if diff := cmp.Diff(wantCorrections, it.Corrections); diff != "" {
		t.Errorf("Corrections mismatch (-want +got):\n%s", diff)
	}

	p1 := it.Geometry.Plane(1)
	if p1 == nil {
		t.Fatal("reconstructed geometry missing sensor 1")
	}
	if p1.Origin[2] != 100 {
		t.Errorf("sensor 1 origin = %v, want z=100", p1.Origin)
	}
	if res := p1.OrthonormalityResidual(); res > 1e-10 {
		t.Errorf("reconstructed plane rotation not orthonormal: residual %g", res)
	}
}

func TestAppendIterationWithoutChi2(t *testing.T) {
	db := openTestDB(t)

	run, err := db.CreateRun("CorrelationAligner", "", 2000)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	geo := testGeometry()
	if err := db.AppendIteration(run.ID, 0, geo, 0, false, 0, false, nil, 2001); err != nil {
		t.Fatalf("AppendIteration: %v", err)
	}

	iters, err := db.ListIterations(run.ID)
	if err != nil {
		t.Fatalf("ListIterations: %v", err)
	}
	if len(iters) != 1 {
		t.Fatalf("len(iters) = %d, want 1", len(iters))
	}
	if iters[0].HasChi2 || iters[0].HasDof {
		t.Errorf("expected no chi2/dof recorded, got HasChi2=%v HasDof=%v", iters[0].HasChi2, iters[0].HasDof)
	}
	if iters[0].Corrections != nil {
		t.Errorf("expected nil corrections, got %v", iters[0].Corrections)
	}
}

func TestLatestGeometryTracksMostRecentIteration(t *testing.T) {
	db := openTestDB(t)
	run, err := db.CreateRun("LocalChi2Aligner", "", 3000)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	first := testGeometry()
	if err := db.AppendIteration(run.ID, 0, first, 10, true, 4, true, nil, 3001); err != nil {
		t.Fatalf("AppendIteration(0): %v", err)
	}

	second := testGeometry()
	if err := second.CorrectGlobalOffset(1, 0, 0, 5); err != nil {
		t.Fatalf("CorrectGlobalOffset: %v", err)
	}
	if err := db.AppendIteration(run.ID, 1, second, 8, true, 4, true, nil, 3002); err != nil {
		t.Fatalf("AppendIteration(1): %v", err)
	}

	latest, err := db.LatestGeometry(run.ID)
	if err != nil {
		t.Fatalf("LatestGeometry: %v", err)
	}
	p1 := latest.Plane(1)
	if p1 == nil || p1.Origin[2] != 105 {
		t.Errorf("LatestGeometry sensor 1 origin = %+v, want z=105", p1)
	}
}

func TestLatestGeometryUnknownRun(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.LatestGeometry("does-not-exist"); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestMarshalGeometryRoundTrip(t *testing.T) {
	geo := testGeometry()
	blob, err := marshalGeometry(geo)
	if err != nil {
		t.Fatalf("marshalGeometry: %v", err)
	}
	back, err := unmarshalGeometry(blob)
	if err != nil {
		t.Fatalf("unmarshalGeometry: %v", err)
	}
	for _, id := range []int32{0, 1} {
		want, got := geo.Plane(id), back.Plane(id)
		if want.Origin != got.Origin {
			t.Errorf("sensor %d origin = %v, want %v", id, got.Origin, want.Origin)
		}
		var diff mat.Dense
		diff.Sub(want.Rotation, got.Rotation)
		if n := mat.Norm(&diff, 2); n > 1e-12 {
			t.Errorf("sensor %d rotation differs after round trip, norm %g", id, n)
		}
	}
}
