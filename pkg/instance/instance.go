package instance

import (
	"os"
	"sync"

	"github.com/google/uuid"
)

var (
	once   sync.Once
	nodeID string
)

// GetID returns the process node identifier. TOURBOOK_NODE_ID wins when set; otherwise a
// random id is generated once per process so relay echoes can be told apart.
func GetID() string {
	once.Do(func() {
		if id := os.Getenv("TOURBOOK_NODE_ID"); id != "" {
			nodeID = id
			return
		}
		host, _ := os.Hostname()
		if host == "" {
			host = "node"
		}
		nodeID = host + "-" + uuid.NewString()[:8]
	})
	return nodeID
}
