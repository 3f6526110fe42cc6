// Package security screens link block targets before they are stored.
package security

import (
	"net/url"
	"strings"
	"sync"

	"github.com/hatefsystems/search-engine-core-sub000/utils"
	"github.com/rs/zerolog/log"
)

// ThreatType names why a target was refused
type ThreatType string

const (
	ThreatBlocklistedHost ThreatType = "BLOCKLISTED_HOST"
	ThreatPhishingPattern ThreatType = "PHISHING_PATTERN"
	ThreatExecutable      ThreatType = "EXECUTABLE_DOWNLOAD"
)

// ScanResult is the outcome of a single scan
type ScanResult struct {
	Safe    bool       `json:"safe"`
	Threat  ThreatType `json:"threat,omitempty"`
	Pattern string     `json:"pattern,omitempty"`
}

// LinkScanner checks link targets against a local blocklist. Host entries
// match the host and its subdomains; pattern entries match anywhere in the
// lowercased URL.
type LinkScanner struct {
	mu       sync.RWMutex
	enabled  bool
	hosts    map[string]struct{}
	patterns []string
}

// NewLinkScanner creates a scanner seeded with the default blocklist plus extra.
// Entries of extra containing "/" or starting with "." are patterns, others are hosts.
func NewLinkScanner(enabled bool, extra []string) *LinkScanner {
	s := &LinkScanner{
		enabled:  enabled,
		hosts:    make(map[string]struct{}),
		patterns: defaultPatterns(),
	}
	for _, h := range defaultHosts() {
		s.hosts[h] = struct{}{}
	}
	for _, entry := range extra {
		s.Add(entry)
	}
	return s
}

// Scan classifies rawURL. Unparseable input is left to URL validation and reported safe.
func (s *LinkScanner) Scan(rawURL string) ScanResult {
	if s == nil || !s.enabled {
		return ScanResult{Safe: true}
	}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ScanResult{Safe: true}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Walk the host and its parents: a.b.example.tk -> b.example.tk -> example.tk -> tk
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	for h := host; h != ""; {
		if _, ok := s.hosts[h]; ok {
			return ScanResult{Threat: ThreatBlocklistedHost, Pattern: h}
		}
		i := strings.IndexByte(h, '.')
		if i < 0 {
			break
		}
		h = h[i+1:]
	}

	lower := strings.ToLower(u.String())
	for _, p := range s.patterns {
		if strings.Contains(lower, p) {
			threat := ThreatPhishingPattern
			if strings.HasPrefix(p, ".") && strings.HasSuffix(p, "?") {
				threat = ThreatExecutable
			}
			return ScanResult{Threat: threat, Pattern: p}
		}
	}
	return ScanResult{Safe: true}
}

// Check returns utils.ErrBlockedURL for targets Scan refuses
func (s *LinkScanner) Check(rawURL string) error {
	res := s.Scan(rawURL)
	if res.Safe {
		return nil
	}
	log.Warn().
		Str("threat", string(res.Threat)).
		Str("pattern", res.Pattern).
		Msg("Link target blocked")
	return utils.ErrBlockedURL
}

// Add extends the blocklist
func (s *LinkScanner) Add(entry string) {
	entry = strings.ToLower(strings.TrimSpace(entry))
	if entry == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.Contains(entry, "/") || strings.HasPrefix(entry, ".") || strings.Contains(entry, "?") {
		s.patterns = append(s.patterns, entry)
		return
	}
	s.hosts[entry] = struct{}{}
}

// Remove drops a host or pattern from the blocklist
func (s *LinkScanner) Remove(entry string) {
	entry = strings.ToLower(strings.TrimSpace(entry))
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hosts, entry)
	for i, p := range s.patterns {
		if p == entry {
			s.patterns = append(s.patterns[:i], s.patterns[i+1:]...)
			return
		}
	}
}

// defaultHosts are free TLDs heavily used for throwaway phishing hosts
func defaultHosts() []string {
	return []string{"tk", "ml", "ga", "cf", "gq"}
}

func defaultPatterns() []string {
	return []string{
		// Common phishing paths
		"account-verify",
		"confirm-account",
		"verify-identity",
		"suspended-account",
		"unusual-activity",
		"billing-problem",

		// Executable downloads behind a query string
		".exe?",
		".scr?",
		".bat?",
		".cmd?",
		".vbs?",

		// Scam keywords
		"free-bitcoin",
		"prize-winner",
	}
}
