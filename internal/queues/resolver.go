package queues

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Queue extensions are dialable 4-digit codes in 8000-8999. Every configured
// queue extension maps to exactly one internal callee extension: the
// destination an inbound leg shows when a queue delivers it.

// defaultQueueMap is the built-in mapping, overridable via a YAML file.
var defaultQueueMap = map[string]string{
	"8000": "7010",
	"8001": "7011",
	"8002": "7012",
	"8003": "7013",
	"8004": "7015",
	"8005": "7017",
	"8006": "7018",
	"8007": "7019",
	"8010": "7020",
	"8011": "7021",
	"8012": "7022",
	"8015": "7025",
	"8020": "7030",
	"8021": "7031",
	"8022": "7032",
	"8030": "7040",
	"8031": "7041",
	"8050": "7050",
	"8051": "7051",
	"8099": "7099",
}

// Resolver is the static bidirectional mapping between queue extensions and
// callee extensions.
type Resolver struct {
	byQueue  map[string]string
	byCallee map[string]string
}

// NewResolver builds a resolver over the built-in mapping.
func NewResolver() *Resolver {
	return newResolver(defaultQueueMap)
}

// queueMapFile is the YAML layout for an external queue map.
type queueMapFile struct {
	Queues map[string]string `yaml:"queues"`
}

// LoadResolver reads a queue map from a YAML file. An empty path returns the
// built-in mapping.
func LoadResolver(path string) (*Resolver, error) {
	if path == "" {
		return NewResolver(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue map: %w", err)
	}

	var file queueMapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse queue map: %w", err)
	}
	if len(file.Queues) == 0 {
		return nil, fmt.Errorf("queue map %s contains no queues", path)
	}

	for queue, callee := range file.Queues {
		if !IsQueueExtension(queue) {
			return nil, fmt.Errorf("invalid queue extension %q in %s", queue, path)
		}
		if len(callee) != 4 {
			return nil, fmt.Errorf("invalid callee extension %q for queue %s", callee, queue)
		}
	}

	return newResolver(file.Queues), nil
}

func newResolver(queueMap map[string]string) *Resolver {
	r := &Resolver{
		byQueue:  make(map[string]string, len(queueMap)),
		byCallee: make(map[string]string, len(queueMap)),
	}
	for queue, callee := range queueMap {
		r.byQueue[queue] = callee
		r.byCallee[callee] = queue
	}
	return r
}

// CalleeExtension resolves a queue extension to its callee extension.
// A missing mapping is a configuration gap, reported via ok=false.
func (r *Resolver) CalleeExtension(queueExt string) (string, bool) {
	callee, ok := r.byQueue[queueExt]
	return callee, ok
}

// QueueForCallee is the reverse lookup.
func (r *Resolver) QueueForCallee(calleeExt string) (string, bool) {
	queue, ok := r.byCallee[calleeExt]
	return queue, ok
}

// Mapping returns a copy of the active queue map.
func (r *Resolver) Mapping() map[string]string {
	m := make(map[string]string, len(r.byQueue))
	for queue, callee := range r.byQueue {
		m[queue] = callee
	}
	return m
}

// IsQueueExtension reports whether s is a 4-digit extension in 8000-8999.
func IsQueueExtension(s string) bool {
	if len(s) != 4 || s[0] != '8' {
		return false
	}
	for i := 1; i < 4; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
