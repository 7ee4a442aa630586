//go:build !unix

package archive

// processAlive cannot check other processes here, so their extractions are kept.
func processAlive(int) bool {
	return true
}
