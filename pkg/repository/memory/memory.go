package memory

import (
	"context"

	"github.com/secmon-lab/notelens/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory keeps every document in process memory. It is used by tests and by
// the --storage-backend=memory mode for trying the service without a database.
type Memory struct {
	document *documentRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		document: newDocumentRepository(),
	}
}

func (m *Memory) Document() interfaces.DocumentRepository {
	return m.document
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

func (m *Memory) Close() error {
	return nil
}
