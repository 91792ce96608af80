package memory_test

import (
	"testing"

	"github.com/aretw0/playbook/pkg/adapters/memory"
	"github.com/aretw0/playbook/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunExecutionStoreContract(t, func(t *testing.T) ports.ExecutionStore {
		return memory.NewStore()
	})
}
