// Package journal defines the audit journal: a persistent trail of every
// audited runtime event together with the verdict that was applied.
//
// The journal is written asynchronously so recording never blocks the
// hosted program. Storage backends live in the storage subpackage and
// retention enforcement in the retention subpackage.
package journal
