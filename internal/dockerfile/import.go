package dockerfile

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/distribution/reference"
	"github.com/moby/buildkit/frontend/dockerfile/parser"

	"github.com/slipwayhq/slipway/internal/manifest"
)

// Flags accepted by apt-get install that carry no package names.
var aptFlags = map[string]bool{
	"-y":                      true,
	"-q":                      true,
	"-qq":                     true,
	"--yes":                   true,
	"--no-install-recommends": true,
	"--no-install-suggests":   true,
}

// The result of importing one Dockerfile: the base runtime it builds on,
// the profile stages recovered from its instructions, and warnings for
// everything that did not map.
type Import struct {
	Runtime    manifest.Runtime
	Variant    string
	Profile    manifest.Profile
	Port       int
	Workdir    string
	StopSignal string
	Warnings   []Warning
}

// An instruction the importer recognized but could not express in a
// bootstrap definition.
type Warning struct {
	Line        int
	Instruction string
	Detail      string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s: %s", w.Line, w.Instruction, w.Detail)
}

// Parses a Dockerfile and recovers the stages a bootstrap definition can
// express.
//
// FROM becomes the runtime image, version, and variant; apt-get installs
// become the package list; a COPY feeding a pip -r install becomes the
// dependency manifest; the remaining COPY becomes the source stage. ENV,
// WORKDIR, EXPOSE, STOPSIGNAL, CMD, and ENTRYPOINT map onto their recipe
// fields. Anything else is reported as a warning, never an error.
func Parse(content []byte) (*Import, error) {
	ast, err := parser.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	imp := &Import{}

	// COPY destinations pending classification as manifest or source.
	copies := &copySet{}

	for _, node := range ast.AST.Children {
		switch strings.ToUpper(node.Value) {
		case "FROM":
			imp.parseFrom(node)
		case "RUN":
			imp.parseRun(node, copies)
		case "COPY", "ADD":
			imp.parseCopy(node, copies)
		case "ENV":
			imp.parseEnv(node)
		case "WORKDIR":
			imp.Workdir = firstArg(node)
		case "EXPOSE":
			imp.parseExpose(node)
		case "STOPSIGNAL":
			imp.StopSignal = firstArg(node)
		case "CMD", "ENTRYPOINT":
			imp.parseCommand(node)
		default:
			imp.warn(node, "instruction has no bootstrap equivalent")
		}
	}

	// COPYs never consumed by an installer are source candidates. The last
	// one wins, matching the layering a Dockerfile author would expect.
	for _, pc := range copies.remaining() {
		if imp.Profile.Source != "" {
			imp.Warnings = append(imp.Warnings, Warning{
				Line:        pc.line,
				Instruction: "COPY",
				Detail:      fmt.Sprintf("multiple source copies; keeping %q, dropping %q", pc.src, imp.Profile.Source),
			})
		}
		imp.Profile.Source = pc.src
	}

	return imp, nil
}

type pendingCopy struct {
	name     string
	src      string
	line     int
	consumed bool
}

// Tracks COPY instructions in order until a later instruction claims them.
type copySet struct {
	entries []*pendingCopy
}

func (c *copySet) add(name, src string, line int) {
	c.entries = append(c.entries, &pendingCopy{name: name, src: src, line: line})
}

// Claims the copy whose in-image name matches, consuming it.
func (c *copySet) take(name string) (*pendingCopy, bool) {
	for _, pc := range c.entries {
		if !pc.consumed && pc.name == name {
			pc.consumed = true
			return pc, true
		}
	}
	return nil, false
}

// Whether an unconsumed whole-context copy (COPY . .) is present.
func (c *copySet) hasContextCopy() bool {
	for _, pc := range c.entries {
		if !pc.consumed && pc.src == "." {
			return true
		}
	}
	return false
}

func (c *copySet) remaining() []*pendingCopy {
	var out []*pendingCopy
	for _, pc := range c.entries {
		if !pc.consumed {
			out = append(out, pc)
		}
	}
	return out
}

// Maps FROM onto the runtime image, splitting a hyphenated tag into a
// version and a base variant (3.11-slim -> version 3.11, variant slim).
func (imp *Import) parseFrom(node *parser.Node) {
	ref := firstArg(node)
	if ref == "" {
		imp.warn(node, "missing image reference")
		return
	}
	if imp.Runtime.Image != "" {
		imp.warn(node, "multi-stage build; only the first stage is imported")
		return
	}

	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		imp.warn(node, fmt.Sprintf("unparsable image reference %q", ref))
		return
	}

	imp.Runtime.Image = reference.Path(named)
	imp.Runtime.Image = strings.TrimPrefix(imp.Runtime.Image, "library/")

	if digested, ok := named.(reference.Digested); ok {
		imp.Runtime.Digest = digested.Digest().String()
	}

	tag := "latest"
	if tagged, ok := named.(reference.Tagged); ok {
		tag = tagged.Tag()
	}
	if version, variant, found := strings.Cut(tag, "-"); found {
		imp.Runtime.Version = version
		imp.Variant = variant
	} else {
		imp.Runtime.Version = tag
	}
}

// Classifies a RUN instruction: apt-get installs feed the package list,
// pip -r installs bind a prior COPY as the dependency manifest, and
// everything else is unmappable.
func (imp *Import) parseRun(node *parser.Node, copies *copySet) {
	cmd := strings.Join(nodeArgs(node), " ")

	switch {
	case strings.Contains(cmd, "apt-get") && strings.Contains(cmd, "install"):
		imp.Profile.Packages = append(imp.Profile.Packages, aptPackages(cmd)...)

	case strings.Contains(cmd, "pip install") && strings.Contains(cmd, "-r"):
		name := pipRequirements(cmd)
		if name == "" {
			imp.warn(node, "pip install -r without a requirements file")
			return
		}
		if pc, ok := copies.take(name); ok {
			imp.Profile.Manifest = pc.src
			imp.Profile.ManifestAs = name
			return
		}
		// A whole-context copy brings the requirements file in at the
		// context root rather than by name.
		if copies.hasContextCopy() {
			imp.Profile.Manifest = name
			imp.Profile.ManifestAs = name
			return
		}
		imp.warn(node, fmt.Sprintf("requirements file %s was never copied in", name))

	default:
		imp.warn(node, fmt.Sprintf("command %q is baked into the base stage and cannot be replayed", cmd))
	}
}

// Records a COPY for later classification as either the dependency
// manifest (when a pip install consumes it) or the source stage.
func (imp *Import) parseCopy(node *parser.Node, copies *copySet) {
	args := nodeArgs(node)
	if len(args) < 2 {
		imp.warn(node, "copy needs a source and a destination")
		return
	}
	if len(args) > 2 {
		imp.warn(node, "multiple copy sources; only the first is imported")
	}

	src := args[0]
	dest := args[len(args)-1]

	name := dest
	if i := strings.LastIndex(dest, "/"); i >= 0 {
		name = dest[i+1:]
	}
	if name == "" || name == "." {
		name = src
		if i := strings.LastIndex(src, "/"); i >= 0 {
			name = src[i+1:]
		}
	}

	copies.add(name, src, node.StartLine)
}

// Maps ENV onto the profile environment, handling both the key=value and
// the legacy space-separated forms.
func (imp *Import) parseEnv(node *parser.Node) {
	args := nodeArgs(node)
	if len(args) == 0 {
		return
	}
	if imp.Profile.Env == nil {
		imp.Profile.Env = map[string]string{}
	}

	if strings.Contains(args[0], "=") {
		for _, arg := range args {
			if key, value, found := strings.Cut(arg, "="); found {
				imp.Profile.Env[key] = value
			}
		}
		return
	}
	if len(args) >= 2 {
		imp.Profile.Env[args[0]] = strings.Join(args[1:], " ")
	}
}

// Takes the first exposed TCP port; a definition declares exactly one.
func (imp *Import) parseExpose(node *parser.Node) {
	for _, arg := range nodeArgs(node) {
		spec, proto, _ := strings.Cut(arg, "/")
		if proto != "" && proto != "tcp" {
			imp.warn(node, fmt.Sprintf("non-tcp port %s", arg))
			continue
		}
		port, err := strconv.Atoi(spec)
		if err != nil {
			imp.warn(node, fmt.Sprintf("unparsable port %q", spec))
			continue
		}
		if imp.Port != 0 {
			imp.warn(node, fmt.Sprintf("extra exposed port %d; keeping %d", port, imp.Port))
			continue
		}
		imp.Port = port
	}
}

// Maps CMD and ENTRYPOINT onto the launch command. The exec (JSON) form
// carries over verbatim; the shell form is wrapped in a shell invocation.
func (imp *Import) parseCommand(node *parser.Node) {
	args := nodeArgs(node)
	if len(args) == 0 {
		return
	}
	if node.Attributes["json"] {
		imp.Profile.Command = args
		return
	}
	imp.Profile.Command = []string{"/bin/sh", "-c", strings.Join(args, " ")}
}

func (imp *Import) warn(node *parser.Node, detail string) {
	imp.Warnings = append(imp.Warnings, Warning{
		Line:        node.StartLine,
		Instruction: strings.ToUpper(node.Value),
		Detail:      detail,
	})
}

// Collects an instruction's arguments from the node chain.
func nodeArgs(node *parser.Node) []string {
	var args []string
	for n := node.Next; n != nil; n = n.Next {
		args = append(args, n.Value)
	}
	return args
}

func firstArg(node *parser.Node) string {
	if node.Next == nil {
		return ""
	}
	return node.Next.Value
}

// Extracts package names from an apt-get install command, stopping at the
// next chained command.
func aptPackages(cmd string) []string {
	fields := strings.Fields(cmd)

	var pkgs []string
	installing := false
	for _, f := range fields {
		switch {
		case f == "install":
			installing = true
		case f == "&&" || f == ";" || f == "||":
			installing = false
		case installing && !aptFlags[f] && !strings.HasPrefix(f, "-"):
			pkgs = append(pkgs, f)
		}
	}
	return pkgs
}

// Extracts the requirements file name from a pip install -r command.
func pipRequirements(cmd string) string {
	fields := strings.Fields(cmd)
	for i, f := range fields {
		if (f == "-r" || f == "--requirement") && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}
