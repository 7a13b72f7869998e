// Package event implements the per-event, per-sensor owning store of
// hits, clusters, local track states, and global tracks, and enforces
// the cross-reference invariants between them.
//
// Ownership: Event owns all SensorEvents and Tracks; SensorEvents own
// their Hits and Clusters. Cross-references (hit->cluster,
// cluster->track, state->cluster) are indices local to the owning
// container, never pointers across ownership boundaries.
package event

// NoIndex marks an absent optional index (cluster, track, region, ...).
const NoIndex int32 = -1

// Hit is a single pixel hit read in from one sensor. It is never
// mutated after cluster assignment except for its Cluster
// back-reference, which the owning SensorEvent sets when the hit is
// added to a cluster.
type Hit struct {
	Col, Row int32 // digital address
	PhysCol, PhysRow int32 // physical address, possibly remapped
	Timestamp int32
	Value int32
	Region int32 // NoIndex if none
	Cluster int32 // NoIndex until assigned to a cluster
}
