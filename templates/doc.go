// Package templates defines the prompt template record shared by the
// discovery packages, the eligibility rules for public discovery, and the
// seed consolidation used to build a deduplicated starter corpus.
package templates
