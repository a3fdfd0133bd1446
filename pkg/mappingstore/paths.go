package mappingstore

import (
	"path"
	"strings"
)

// ApplyRoot prefixes p with root unless p already lives under it. A blank
// root leaves p unchanged.
func ApplyRoot(p, root string) string {
	root = strings.Trim(root, "/")
	if root == "" {
		return p
	}
	if p == root || strings.HasPrefix(p, root+"/") {
		return p
	}
	return path.Join(root, p)
}

// DefaultPath locates the mapping for a transaction set: the client
// specific document when client is set, the standard one otherwise.
func DefaultPath(root, client, transactionSet string) string {
	if client != "" {
		return path.Join(root, "clients", client, transactionSet+".json")
	}
	return path.Join(root, "standards", transactionSet+".json")
}
