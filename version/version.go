package version

// Version is set at link time with -ldflags "-X github.com/mimic-ml/mimic/version.Version=...".
var Version string = "0.0.0"
