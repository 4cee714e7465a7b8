package analyzer

import (
	"errors"

	"github.com/agentic-research/spaceused/internal/header"
	"github.com/agentic-research/spaceused/internal/source"
)

var (
	// ErrMalformedHeader means the file is shorter than a database header.
	ErrMalformedHeader = header.ErrMalformed
	// ErrUnsupportedCapability means the engine cannot report page metadata.
	ErrUnsupportedCapability = source.ErrUnsupportedCapability
	// ErrUnknownObject means no table or index has the requested name.
	ErrUnknownObject = errors.New("no such table or index")
	// ErrNoIndices means index statistics were requested for a database
	// without indices.
	ErrNoIndices = errors.New("there are no indices in the database")
)
