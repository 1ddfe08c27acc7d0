// Package entityid derives deterministic entity identifiers from an entity's
// type and canonical name, so the same surface concept always maps to the
// same graph node id regardless of which document or pass introduced it.
package entityid

import (
	"github.com/google/uuid"

	"litkg/internal/types"
)

// namespace fixes the UUIDv5/SHA1 namespace used for entity ids, matching
// the deterministic-hashing approach internal/vectorstore already uses to
// turn arbitrary internal ids into valid chromem-go UUIDs.
var namespace = uuid.MustParse("7f3c1f0e-7e3d-4b8a-9a1a-9e6b9e6c5a10")

// New derives a stable id for (entityType, canonicalName). Two calls with
// the same arguments always produce the same id, so extraction passes that
// independently discover the same entity converge on one graph node without
// a shared in-memory registry.
func New(entityType types.EntityType, canonicalName string) string {
	return uuid.NewSHA1(namespace, []byte(string(entityType)+"::"+canonicalName)).String()
}
