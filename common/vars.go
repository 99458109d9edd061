package common

// Version is overridden at build time with
// -ldflags "-X github.com/ruteri/model-registry-backend/common.Version=..."
var Version = "dev"

const PackageName = "github.com/ruteri/model-registry-backend"
