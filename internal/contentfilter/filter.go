// Package contentfilter redacts personal contact details (emails, phone
// numbers, off-platform links) from user-written text before it is stored.
package contentfilter

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Placeholder tokens written in place of redacted spans. Neither contains a
// digit, an "@" or a dot, so filtering already-filtered text is a no-op.
const (
	ContactPlaceholder = "[contact hidden]"
	LinkPlaceholder    = "[link removed]"
)

// Kind identifies which pass produced a match.
type Kind string

const (
	KindEmail Kind = "email"
	KindPhone Kind = "phone"
	KindURL   Kind = "url"
)

var (
	emailPattern = regexp.MustCompile(`(?i)[a-z0-9._%+-]+@[a-z0-9-]+(?:\.[a-z0-9-]+)*\.[a-z]{2,}`)

	phonePattern = regexp.MustCompile(`(?:\+\d{1,3}[ ./_-]{0,3}|\+)?(?:\(\d{1,4}\)[ ./_-]{0,3})?\b\d+(?:[ ./_-]{1,3}\d+)*\b`)

	// A slash or a spaced dash between digit groups usually separates two
	// numbers rather than the parts of one.
	listSeparatorPattern = regexp.MustCompile(` ?/ ?| [._-] `)

	// Explicit scheme or www prefix: any host. Bare hosts need an alphabetic
	// TLD and are then checked by looksLikeBareHost.
	schemeURLPattern = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"']+`)
	bareURLPattern   = regexp.MustCompile(`(?i)\b(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,63}\b(?:[/?#][^\s<>"']*)?`)

	datePattern = regexp.MustCompile(`^(?:\d{4}[./-]\d{1,2}[./-]\d{1,2}|\d{1,2}[./-]\d{1,2}[./-]\d{2,4}|(?:19|20)\d{2}[/-](?:19|20)\d{2})$`)
	ipv4Pattern = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}\b`)
	uuidPattern = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
)

const (
	minFormattedPhoneDigits   = 7
	minUnformattedPhoneDigits = 7
	maxPhoneDigits            = 15
)

// Bare hosts whose last label is longer than this need a path or a suffix
// from longSuffixes.
const maxShortSuffix = 3

var longSuffixes = map[string]bool{
	"info": true, "online": true, "site": true, "link": true, "page": true, "shop": true,
	"store": true, "live": true, "life": true, "blog": true, "email": true, "social": true,
	"website": true, "club": true, "chat": true, "space": true,
}

// "ok.so" and "no.of" are sentences missing a space, not hosts.
var commonWords = map[string]bool{
	"a": true, "i": true, "ok": true, "hi": true, "no": true, "so": true, "to": true,
	"of": true, "is": true, "it": true, "in": true, "at": true, "on": true, "or": true,
	"if": true, "be": true, "we": true, "he": true, "me": true, "my": true, "up": true,
	"as": true, "by": true, "do": true, "go": true, "us": true, "am": true, "an": true,
	"the": true, "and": true, "but": true, "you": true, "are": true, "how": true,
	"was": true, "not": true, "can": true, "had": true, "has": true, "her": true,
	"his": true, "our": true, "for": true, "all": true, "any": true, "too": true,
	"who": true, "why": true, "yes": true, "hey": true, "bye": true, "etc": true,
}

var fileExtensions = map[string]bool{
	"pdf": true, "jpg": true, "jpeg": true, "png": true, "gif": true, "doc": true,
	"docx": true, "txt": true, "mp3": true, "mp4": true, "heic": true,
}

var titles = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "st": true, "jr": true, "sr": true, "prof": true,
}

// Result is the outcome of a filter run.
type Result struct {
	Filtered     string   `json:"filtered"`
	BlockedItems []string `json:"blocked_items"`
	Kinds        []Kind   `json:"-"`
}

// Blocked reports whether anything was redacted.
func (r Result) Blocked() bool {
	return len(r.BlockedItems) > 0
}

// Filter scans text with a fixed link allow-list. Safe for concurrent use.
type Filter struct {
	allowHosts []string
}

// New returns a Filter that lets links to allowHosts (and their subdomains)
// through unchanged.
func New(allowHosts ...string) *Filter {
	f := &Filter{}
	for _, h := range allowHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		h = strings.TrimPrefix(h, "www.")
		if h != "" {
			f.allowHosts = append(f.allowHosts, h)
		}
	}
	return f
}

type span struct {
	start, end int
	kind       Kind
	allowed    bool
}

// origin maps one byte of the working text back to the input. Bytes of an
// inserted placeholder all share the placeholder's id and the full input
// range it replaced; plain bytes have id -1.
type origin struct {
	start, end int
	id         int
	kind       Kind
}

// Filter runs the email, phone and URL passes over the text and replaces
// every blocked span with its placeholder. Redaction can expose a new match
// (an email glued to a phone number), so rounds repeat until one blocks
// nothing; the result is therefore a fixed point. Each blocked span holds at
// least one '@', digit, '.', ':' or '/', none of which a placeholder has, so
// the loop ends.
func (f *Filter) Filter(text string) Result {
	if text == "" {
		return Result{Filtered: text}
	}

	cur := text
	origins := make([]origin, len(text))
	for i := range origins {
		origins[i] = origin{start: i, end: i + 1, id: -1}
	}

	nextID := 0
	for {
		spans := f.scan(cur)
		if len(spans) == 0 {
			break
		}
		cur, origins = redact(cur, origins, spans, &nextID)
	}

	result := Result{Filtered: cur}
	prev := -1
	for _, o := range origins {
		if o.id >= 0 && o.id != prev {
			result.BlockedItems = append(result.BlockedItems, text[o.start:o.end])
			result.Kinds = append(result.Kinds, o.kind)
		}
		prev = o.id
	}
	return result
}

// scan returns the merged blocked spans of one round. Every pass looks at
// the same input.
func (f *Filter) scan(text string) []span {
	var links []span
	for _, loc := range schemeURLPattern.FindAllStringIndex(text, -1) {
		if s, ok := f.urlSpan(text, loc); ok {
			links = append(links, s)
		}
	}
	for _, loc := range bareURLPattern.FindAllStringIndex(text, -1) {
		if s, ok := f.urlSpan(text, loc); ok && looksLikeBareHost(text[s.start:s.end]) {
			links = append(links, s)
		}
	}

	// Ids and addresses inside allowed links are not phone numbers.
	var exempt []span
	for _, re := range []*regexp.Regexp{uuidPattern, ipv4Pattern} {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			region := span{start: loc[0], end: loc[1]}
			for _, l := range links {
				if l.allowed && region.start >= l.start && region.end <= l.end {
					exempt = append(exempt, region)
					break
				}
			}
		}
	}

	spans := links
	for _, loc := range emailPattern.FindAllStringIndex(text, -1) {
		spans = append(spans, span{start: loc[0], end: loc[1], kind: KindEmail})
	}
	for _, loc := range phonePattern.FindAllStringIndex(text, -1) {
		for _, s := range phoneSpans(text, loc[0], loc[1]) {
			if !insideAny(s, exempt) {
				spans = append(spans, s)
			}
		}
	}

	merged := mergeSpans(spans)
	blocked := merged[:0]
	for _, s := range merged {
		if !s.allowed {
			blocked = append(blocked, s)
		}
	}
	return blocked
}

func (f *Filter) urlSpan(text string, loc []int) (span, bool) {
	end := loc[0] + len(strings.TrimRight(text[loc[0]:loc[1]], ".,;:!?)]}"))
	if end <= loc[0] {
		return span{}, false
	}
	return span{
		start:   loc[0],
		end:     end,
		kind:    KindURL,
		allowed: f.hostAllowed(text[loc[0]:end]),
	}, true
}

// phoneSpans returns the phone numbers in one digit run. A run too long for
// one number is split at list separators and each part checked on its own.
func phoneSpans(text string, start, end int) []span {
	match := text[start:end]
	if looksLikePhone(match) {
		return []span{{start: start, end: end, kind: KindPhone}}
	}
	if countDigits(match) <= maxPhoneDigits {
		return nil
	}
	seps := listSeparatorPattern.FindAllStringIndex(match, -1)
	if len(seps) == 0 {
		return nil
	}
	var out []span
	from := start
	for _, sep := range seps {
		out = append(out, phoneSpans(text, from, start+sep[0])...)
		from = start + sep[1]
	}
	return append(out, phoneSpans(text, from, end)...)
}

func insideAny(s span, regions []span) bool {
	for _, r := range regions {
		if s.start >= r.start && s.end <= r.end {
			return true
		}
	}
	return false
}

// redact swaps each span for its placeholder. A span that cuts into an
// earlier placeholder is widened to swallow it whole.
func redact(text string, origins []origin, spans []span, nextID *int) (string, []origin) {
	var (
		b    strings.Builder
		out  = make([]origin, 0, len(origins))
		last int
	)
	for _, s := range spans {
		start, end := s.start, s.end
		for start > 0 && origins[start].id >= 0 && origins[start-1].id == origins[start].id {
			start--
		}
		for end < len(text) && origins[end-1].id >= 0 && origins[end].id == origins[end-1].id {
			end++
		}
		if start < last {
			start = last
		}
		if start >= end {
			continue
		}

		b.WriteString(text[last:start])
		out = append(out, origins[last:start]...)

		region := origin{start: origins[start].start, end: origins[start].end, id: *nextID, kind: s.kind}
		for _, o := range origins[start:end] {
			region.start = min(region.start, o.start)
			region.end = max(region.end, o.end)
		}
		*nextID++

		ph := placeholderFor(s.kind)
		b.WriteString(ph)
		for range len(ph) {
			out = append(out, region)
		}
		last = end
	}
	b.WriteString(text[last:])
	out = append(out, origins[last:]...)
	return b.String(), out
}

// mergeSpans orders spans by position and folds overlaps into one region.
// A region is allowed only when every span in it is.
func mergeSpans(spans []span) []span {
	if len(spans) == 0 {
		return nil
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end-spans[i].start > spans[j].end-spans[j].start
	})

	out := []span{spans[0]}
	for _, s := range spans[1:] {
		cur := &out[len(out)-1]
		if s.start >= cur.end {
			out = append(out, s)
			continue
		}
		if s.end <= cur.end {
			// A contact inside an allowed link blocks the whole link.
			if cur.allowed && !s.allowed {
				cur.allowed = false
			}
			continue
		}
		cur.end = s.end
		if cur.allowed && !s.allowed {
			cur.allowed = false
			cur.kind = s.kind
		}
	}
	return out
}

func placeholderFor(k Kind) string {
	if k == KindURL {
		return LinkPlaceholder
	}
	return ContactPlaceholder
}

// looksLikePhone drops years, short ids, long record numbers and dates.
func looksLikePhone(match string) bool {
	digits := countDigits(match)
	if digits <= 4 || digits > maxPhoneDigits {
		return false
	}
	if digits == len(match) {
		return digits >= minUnformattedPhoneDigits
	}
	if datePattern.MatchString(strings.ReplaceAll(match, " ", "")) {
		return false
	}
	return digits >= minFormattedPhoneDigits
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// looksLikeBareHost filters scheme-less matches. Short TLDs count as links
// unless the match is a file name, a title ("Dr.Raj") or two everyday words.
// Longer last labels ("ok.thanks") need a path or a known suffix.
func looksLikeBareHost(match string) bool {
	host, hasPath := match, false
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host, hasPath = host[:i], true
	}
	labels := strings.Split(strings.ToLower(host), ".")
	tld := labels[len(labels)-1]
	if !hasPath && len(labels) == 2 {
		if fileExtensions[tld] || titles[labels[0]] || (commonWords[labels[0]] && commonWords[tld]) {
			return false
		}
	}
	return hasPath || len(tld) <= maxShortSuffix || longSuffixes[tld]
}

func (f *Filter) hostAllowed(raw string) bool {
	if len(f.allowHosts) == 0 {
		return false
	}
	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "http://" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "" {
		return false
	}
	for _, allowed := range f.allowHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
