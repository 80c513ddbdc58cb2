// Package internal contains the implementation packages of mpwizard.
//
// # Package Organization
//
// The packages are organized by stage of document generation:
//
//   - fragments: The immutable catalog of fragment definitions and the
//     shipped fragment files
//   - session: Wizard state (identity, discovery, component instances and
//     their records), state files and the terminal wizard
//   - resolver: ##Token## substitution with XML escaping
//   - processor: Produces one XML fragment per selected entry, fetching
//     external fragment files
//   - extractor: Splits a fragment into its top-level sections
//   - combiner: Merges extracted sections across fragments
//   - assembler: Builds a new management pack or merges into an imported one
//   - generator: Runs a session through the stages above
//   - xmltree: Shared XML tree helpers over etree
//   - server: HTTP API, live preview over websockets and fragment file serving
//   - watcher: State file monitoring with debouncing
//   - config, logging, errors, version: Ambient support
//
// # Data Flow
//
//	session -> processor -> extractor -> combiner -> assembler
//
// The processor resolves placeholders with the resolver. A fragment that
// cannot be fetched or parsed becomes a comment in the output and never
// aborts the document.
package internal
