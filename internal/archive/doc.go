// Package archive writes the tar containers of a backup.
//
// A Builder streams regular files into tar format while hashing each entry
// with XXH3. All metadata that depends on the machine or the time of the run
// (owner ids and names, timestamps) is normalized, so content-identical input
// always yields byte-identical tar output. A directory root element is first
// packed into a bounded in-memory Buffer by a DirPacker and then added to the
// outer container as one wrapped entry named "./<dir>.tar".
package archive
