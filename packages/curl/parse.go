package curl

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

// flags taking a value. Anything else starting with "-" is a switch.
var valueFlags = map[string]bool{
	"-X": true, "--request": true,
	"-H": true, "--header": true,
	"-d": true, "--data": true, "--data-raw": true, "--data-binary": true,
	"--data-ascii": true, "--data-urlencode": true, "--json": true,
	"-F": true, "--form": true,
	"-u": true, "--user": true,
	"-A": true, "--user-agent": true,
	"-e": true, "--referer": true,
	"-b": true, "--cookie": true,
	"-x": true, "--proxy": true,
	"-m": true, "--max-time": true,
	"--max-redirs": true, "--url": true, "--unix-socket": true,
	"-o": true, "--output": true, "--connect-timeout": true, "-w": true, "--write-out": true,
}

// Parse converts a curl command line into a request config. The leading
// "curl" word is optional. Unknown switches are ignored.
func Parse(command string) (*courier.Config, error) {
	tokens, err := Tokenize(command)
	if err != nil {
		return nil, err
	}
	if len(tokens) > 0 && tokens[0] == "curl" {
		tokens = tokens[1:]
	}

	p := &parsed{cfg: &courier.Config{Headers: courier.Header{}}}
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		name, value, inline := strings.Cut(tok, "=")
		if !strings.HasPrefix(tok, "--") || !valueFlags[name] {
			name, inline = tok, false
		}
		if strings.HasPrefix(name, "-") && len(name) > 2 && name[1] != '-' && valueFlags[name[:2]] {
			// -XPOST, -H"Accept: x"
			name, value, inline = name[:2], name[2:], true
		}

		if !strings.HasPrefix(name, "-") || name == "-" {
			if p.url == "" {
				p.url = tok
			}
			continue
		}
		if valueFlags[name] && !inline {
			if i+1 >= len(tokens) {
				return nil, fmt.Errorf("missing value for %s", name)
			}
			i++
			value = tokens[i]
		}
		if err := p.apply(name, value); err != nil {
			return nil, err
		}
	}
	return p.finish()
}

type parsed struct {
	cfg      *courier.Config
	url      string
	method   string
	data     []string
	form     *courier.FormData
	getData  bool
	head     bool
	location bool
	redirs   int
}

func (p *parsed) apply(flag, value string) error {
	cfg := p.cfg
	switch flag {
	case "-X", "--request":
		p.method = strings.ToLower(value)
	case "-H", "--header":
		k, v, ok := strings.Cut(value, ":")
		if !ok {
			return fmt.Errorf("invalid header %q", value)
		}
		cfg.Headers.Set(strings.TrimSpace(k), strings.TrimSpace(v))
	case "-d", "--data", "--data-raw", "--data-binary", "--data-ascii":
		p.data = append(p.data, value)
	case "--data-urlencode":
		if k, v, ok := strings.Cut(value, "="); ok {
			p.data = append(p.data, k+"="+url.QueryEscape(v))
		} else {
			p.data = append(p.data, url.QueryEscape(value))
		}
	case "--json":
		p.data = append(p.data, value)
		if !cfg.Headers.Has("Content-Type") {
			cfg.Headers.Set("Content-Type", "application/json")
		}
		if !cfg.Headers.Has("Accept") {
			cfg.Headers.Set("Accept", "application/json")
		}
	case "-F", "--form":
		k, v, ok := strings.Cut(value, "=")
		if !ok {
			return fmt.Errorf("invalid form field %q", value)
		}
		if p.form == nil {
			p.form = courier.NewFormData("")
		}
		if path, isFile := strings.CutPrefix(v, "@"); isFile {
			p.form.AppendFile(k, path)
		} else {
			p.form.Append(k, v)
		}
	case "-u", "--user":
		user, pass, _ := strings.Cut(value, ":")
		cfg.Auth = &courier.BasicAuth{Username: user, Password: pass}
	case "-A", "--user-agent":
		cfg.Headers.Set("User-Agent", value)
	case "-e", "--referer":
		cfg.Headers.Set("Referer", value)
	case "-b", "--cookie":
		cfg.Headers.Set("Cookie", value)
	case "-x", "--proxy":
		proxy, err := courier.ParseProxy(value)
		if err != nil {
			return fmt.Errorf("invalid proxy %q: %w", value, err)
		}
		cfg.Proxy = proxy
	case "-m", "--max-time":
		secs, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid max-time %q", value)
		}
		cfg.Timeout = courier.Duration(time.Duration(secs * float64(time.Second)))
	case "--max-redirs":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid max-redirs %q", value)
		}
		p.redirs = n
	case "--url":
		p.url = value
	case "--unix-socket":
		cfg.SocketPath = value
	case "-k", "--insecure":
		cfg.ValidateSSL = courier.Bool(false)
	case "-L", "--location":
		p.location = true
	case "-G", "--get":
		p.getData = true
	case "-I", "--head":
		p.head = true
	case "--compressed":
		cfg.Decompress = courier.Bool(true)
	}
	return nil
}

func (p *parsed) finish() (*courier.Config, error) {
	cfg := p.cfg
	if p.url == "" {
		return nil, fmt.Errorf("no URL found in curl command")
	}
	cfg.URL = p.url

	// curl does not follow redirects unless asked to.
	switch {
	case !p.location:
		cfg.MaxRedirects = courier.Ptr(0)
	case p.redirs > 0:
		cfg.MaxRedirects = courier.Ptr(p.redirs)
	}

	body := strings.Join(p.data, "&")
	switch {
	case p.getData && len(p.data) > 0:
		sep := "?"
		if strings.Contains(cfg.URL, "?") {
			sep = "&"
		}
		cfg.URL += sep + body
	case p.form != nil:
		cfg.Data = p.form
	case len(p.data) > 0:
		cfg.Data = body
		if !cfg.Headers.Has("Content-Type") {
			cfg.Headers.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}

	switch {
	case p.method != "":
		cfg.Method = p.method
	case p.head:
		cfg.Method = courier.MethodHead
	case cfg.Data != nil:
		cfg.Method = courier.MethodPost
	default:
		cfg.Method = courier.MethodGet
	}
	if len(cfg.Headers) == 0 {
		cfg.Headers = nil
	}
	return cfg, nil
}

// Tokenize splits a shell-style command line. Single quotes are literal,
// double quotes honour backslash escapes, and a backslash-newline joins
// lines.
func Tokenize(command string) ([]string, error) {
	var (
		tokens  []string
		cur     strings.Builder
		started bool
		quote   rune
		escaped bool
	)
	for _, r := range command {
		switch {
		case escaped:
			if r != '\n' {
				cur.WriteRune(r)
				started = true
			}
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\\':
			escaped = true
		case quote == '"':
			if r == '"' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			started = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if started {
				tokens = append(tokens, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if started {
		tokens = append(tokens, cur.String())
	}
	return tokens, nil
}

// SplitCommands reads curl commands one per logical line, joining lines
// that end in a backslash. Blank lines and # comments are skipped.
func SplitCommands(r io.Reader) ([]string, error) {
	var (
		commands []string
		cur      strings.Builder
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if cur.Len() == 0 && (line == "" || strings.HasPrefix(line, "#")) {
			continue
		}
		if rest, ok := strings.CutSuffix(line, "\\"); ok {
			cur.WriteString(rest)
			cur.WriteString(" ")
			continue
		}
		cur.WriteString(line)
		commands = append(commands, cur.String())
		cur.Reset()
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read commands: %w", err)
	}
	if cur.Len() > 0 {
		commands = append(commands, strings.TrimSpace(cur.String()))
	}
	return commands, nil
}
