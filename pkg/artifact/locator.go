// Package artifact derives download locations for serialized model weights
// and parses the remote catalog manifest. Everything here is pure string
// construction; no network access occurs.
package artifact

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// checkpointExt is the extension of serialized weight artifacts.
	checkpointExt = ".th"
	// signatureLen is the number of signature characters embedded in
	// artifact names.
	signatureLen = 8
	// rootDirective introduces a path prefix for subsequent catalog lines.
	rootDirective = "root:"
)

// ErrDuplicateEntry indicates a catalog manifest with a repeated short name.
// This signals a corrupt manifest, not a bad user request.
var ErrDuplicateEntry = errors.New("artifact: duplicate catalog entry")

// Locator builds artifact URLs below a fixed remote root.
type Locator struct {
	rootURL string
}

// NewLocator returns a locator rooted at rootURL. The root is used verbatim
// and should normally end with a slash.
func NewLocator(rootURL string) *Locator {
	return &Locator{rootURL: rootURL}
}

// URL returns the remote location of the artifact for name signed with
// signature: root + name + "-" + the first 8 characters of the signature +
// ".th". Signatures shorter than 8 characters are passed through untouched;
// the resulting URL is simply malformed downstream.
func (l *Locator) URL(name, signature string) string {
	if len(signature) > signatureLen {
		signature = signature[:signatureLen]
	}
	return l.rootURL + name + "-" + signature + checkpointExt
}

// ParseCatalog parses the manifest text mapping short signature prefixes to
// fully qualified artifact URLs. Lines starting with "#" are comments; a
// "root: <prefix>" line sets the path prefix applied to all subsequent
// entries; any other line contributes an entry keyed by the text before its
// first "-" (the whole line when it has none). A repeated short name is a
// fatal configuration error.
func (l *Locator) ParseCatalog(manifest string) (map[string]string, error) {
	root := ""
	models := make(map[string]string)
	for _, line := range strings.Split(manifest, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, rootDirective) {
			root = strings.TrimSpace(line[len(rootDirective):])
			continue
		}
		sig := line
		if i := strings.Index(line, "-"); i >= 0 {
			sig = line[:i]
		}
		if _, ok := models[sig]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateEntry, sig)
		}
		models[sig] = l.rootURL + root + line
	}
	return models, nil
}
