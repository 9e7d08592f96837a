package agentflow

import _ "embed"

// Version is the release string, read from the VERSION file at build time.
//
//go:embed VERSION
var Version string
