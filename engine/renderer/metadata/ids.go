package metadata

import "github.com/google/uuid"

/** @brief Identifies a model across frames. Cached GPU meshes are keyed on it. */
type ModelID uuid.UUID

/** @brief Identifies a render pass. Assigned once when the pass is built. */
type PassID uuid.UUID

/** @brief Identifies a material instance, used to skip redundant binds. */
type MaterialInstanceID uuid.UUID

func NewModelID() ModelID                       { return ModelID(uuid.New()) }
func NewPassID() PassID                         { return PassID(uuid.New()) }
func NewMaterialInstanceID() MaterialInstanceID { return MaterialInstanceID(uuid.New()) }

func (id ModelID) String() string            { return uuid.UUID(id).String() }
func (id PassID) String() string             { return uuid.UUID(id).String() }
func (id MaterialInstanceID) String() string { return uuid.UUID(id).String() }

// Compare orders ids bytewise, used to sort batches deterministically.
func (id ModelID) Compare(o ModelID) int                       { return compareBytes(id[:], o[:]) }
func (id PassID) Compare(o PassID) int                         { return compareBytes(id[:], o[:]) }
func (id MaterialInstanceID) Compare(o MaterialInstanceID) int { return compareBytes(id[:], o[:]) }

func compareBytes(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

/** @brief Key of the mesh cache: one upload per model and pass. */
type MeshKey struct {
	Model ModelID
	Pass  PassID
}

/** @brief How long an uploaded mesh stays in the cache. */
type Lifetime int

const (
	/** @brief Kept until the manager is destroyed. */
	LifetimeCached Lifetime = iota
	/** @brief Dropped once the frames in flight can no longer reference it. */
	LifetimeTransient
)

func (l Lifetime) String() string {
	if l == LifetimeTransient {
		return "transient"
	}
	return "cached"
}
