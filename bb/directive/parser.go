// Package directive extracts burst buffer staging directives from the
// leading comment block of a job script.
//
// Directives are comment lines tagged "#LOD". Translate joins backslash
// continuations into logical lines, Validate rejects malformed requests
// before the job is accepted, and Parse produces the job's Options.
package directive

import (
	"os"
	"strings"

	"github.com/KnightKu/slurm/bb"
)

// Prefix tags a script comment line as a staging directive.
const Prefix = "#LOD"

// ConfResource reports whether the cluster-wide default tool
// configuration is available. A setup directive may omit mdtdevs= and
// ostdevs= only when it is.
type ConfResource func() bool

// FileConfResource is the standard ConfResource: the file at path exists.
func FileConfResource(path string) ConfResource {
	return func() bool {
		_, err := os.Stat(path)
		return err == nil
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t'
}

// Translate copies the tagged lines of a script's leading comment block
// into a directive block, one logical directive per line. A line ending
// in a backslash is joined with the next tagged line; when the fragment
// already ends in whitespace, leading whitespace of the continuation is
// dropped so at most one space separates the joined pieces. Scanning
// stops at the first non-comment line. Untagged comment lines are
// ignored.
func Translate(script string) string {
	var buf strings.Builder
	isCont, hasSpace := false, false
	for _, line := range strings.Split(script, "\n") {
		if !strings.HasPrefix(line, "#") {
			break
		}
		if !strings.HasPrefix(line, Prefix) {
			isCont = false
			continue
		}
		tok := line
		if isCont {
			tok = tok[len(Prefix):]
			if hasSpace {
				tok = strings.TrimLeft(tok, " \t")
			}
		} else if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		if strings.HasSuffix(tok, "\\") {
			hasSpace = len(tok) >= 2 && isSpace(tok[len(tok)-2])
			tok = tok[:len(tok)-1]
			isCont = true
		} else {
			isCont = false
		}
		buf.WriteString(tok)
	}
	return buf.String()
}

// Validate checks a translated directive block, returning an
// InvalidRequestError for requests the controller must reject:
// setup without both mdtdevs= and ostdevs= when no default configuration
// resource exists, stage_in/stage_out without both source= and
// destination=, and stop without a preceding setup.
func Validate(block string, conf ConfResource) error {
	sawSetup, sawStop := false, false
	for _, line := range strings.Split(block, "\n") {
		if !strings.HasPrefix(line, "#") {
			break
		}
		if !strings.HasPrefix(line, Prefix) {
			continue
		}
		tok := strings.TrimLeft(line[len(Prefix):], " \t")
		switch {
		case strings.HasPrefix(tok, "setup"):
			sawSetup = true
			if !strings.Contains(tok, "mdtdevs=") || !strings.Contains(tok, "ostdevs=") {
				if conf == nil || !conf() {
					return bb.InvalidRequestf(
						"setup without mdtdevs= and ostdevs= requires a default tool configuration")
				}
			}
		case strings.HasPrefix(tok, "stage_in"), strings.HasPrefix(tok, "stage_out"):
			if !strings.Contains(tok, "source=") || !strings.Contains(tok, "destination=") {
				return bb.InvalidRequestf("staging requires source= and destination=")
			}
		case strings.HasPrefix(tok, "stop"):
			sawStop = true
		}
	}
	if sawStop && !sawSetup {
		return bb.InvalidRequestf("stop requires setup")
	}
	return nil
}

// Parse extracts staging options from a translated directive block.
// Returns nil when the block carries no directives. Each directive is
// a verb followed by key=value tokens; values run to the next
// whitespace. A repeated stage_in or stage_out overwrites the whole
// triple, last occurrence wins. Parsing is idempotent.
func Parse(block string) *bb.Options {
	var opts *bb.Options
	for _, line := range strings.Split(block, "\n") {
		if !strings.HasPrefix(line, "#") {
			break
		}
		if !strings.HasPrefix(line, Prefix) {
			continue
		}
		fields := strings.Fields(line[len(Prefix):])
		if len(fields) == 0 {
			continue
		}
		if opts == nil {
			opts = &bb.Options{}
		}
		kv := keyvals(fields[1:])
		switch fields[0] {
		case "setup":
			opts.Setup = true
			setIfPresent(kv, "node", &opts.Nodes)
			setIfPresent(kv, "mdtdevs", &opts.MdtDevs)
			setIfPresent(kv, "ostdevs", &opts.OstDevs)
			setIfPresent(kv, "inet", &opts.Inet)
			setIfPresent(kv, "mountpoint", &opts.MountPoint)
		case "stage_in":
			opts.StageIn = true
			opts.In = bb.Transfer{
				Source:      kv["source"],
				SourceList:  kv["sourcelist"],
				Destination: kv["destination"],
			}
		case "stage_out":
			opts.StageOut = true
			opts.Out = bb.Transfer{
				Source:      kv["source"],
				SourceList:  kv["sourcelist"],
				Destination: kv["destination"],
			}
		case "stop":
			opts.NeedStop = true
		}
	}
	return opts
}

// keyvals splits key=value tokens; the first occurrence of a key in a
// directive wins.
func keyvals(fields []string) map[string]string {
	kv := make(map[string]string, len(fields))
	for _, f := range fields {
		i := strings.IndexByte(f, '=')
		if i <= 0 {
			continue
		}
		if _, ok := kv[f[:i]]; !ok {
			kv[f[:i]] = f[i+1:]
		}
	}
	return kv
}

func setIfPresent(kv map[string]string, key string, dst *string) {
	if v, ok := kv[key]; ok {
		*dst = v
	}
}
