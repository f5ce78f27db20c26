package cmn

// Config is the subset of node configuration the core execution
// engine needs to operate: its position in the keyspace ring and the
// addresses of its peers. Loading this from a file/flags is the
// config loader's job (out of scope, see SPEC_FULL §1); this engine
// only consumes the already-parsed result.
type Config struct {
	// KeyspaceSize is the total size of the dataset-id keyspace.
	KeyspaceSize uint64
	// NodeIdx is this node's position among all storage nodes
	// (0-based), including itself.
	NodeIdx int
	// Peers lists every other storage node's address, in ring order,
	// excluding self.
	Peers []string
	// ConfDir is the directory the block store persists its durable
	// maps under.
	ConfDir string
}

// SpaceSize is the per-node share of the keyspace: keyspace_size /
// (num_peers + 1), the "+1" accounting for self.
func (c *Config) SpaceSize() uint64 {
	n := uint64(len(c.Peers)) + 1
	if n == 0 {
		return c.KeyspaceSize
	}
	return c.KeyspaceSize / n
}

// NumPeers is the number of storage nodes other than self.
func (c *Config) NumPeers() int { return len(c.Peers) }
