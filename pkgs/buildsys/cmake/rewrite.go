package cmake

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/gydrogen/hydrogit/pkgs/buildsys"
)

// DescriptorName is the file rewritten at the root of every version.
const DescriptorName = "CMakeLists.txt"

// DefaultFlags keep the bitcode unoptimized and debuggable so every
// source line survives into the IR.
var DefaultFlags = []string{"-O0", "-Xclang", "-disable-O0-optnone", "-g"}

var (
	callRe    = regexp.MustCompile(`(?i)^\s*(?:project|add_executable|add_library)\s*\(`)
	targetRe  = regexp.MustCompile(`(?i)^\s*add_(?:executable|library)\s*\(\s*([^\s()]+)(.*)$`)
	projectRe = regexp.MustCompile(`(?i)^(\s*)project\s*\(([^)]*)\)(.*)$`)
	argRe     = regexp.MustCompile(`"[^"]*"|[^\s"]+`)
	varRe     = regexp.MustCompile(`\$\{(PROJECT_NAME|CMAKE_PROJECT_NAME)\}`)
)

// Declarations that cannot carry compiled sources.
var nonBuildable = map[string]bool{"IMPORTED": true, "ALIAS": true, "INTERFACE": true}

var parenReplacer = strings.NewReplacer("(", " ", ")", " ")

var projectKeywords = map[string]bool{
	"VERSION": true, "DESCRIPTION": true, "HOMEPAGE_URL": true, "LANGUAGES": true,
}

// Rewriter patches CMakeLists.txt with llvm-ir-cmake-utils targets.
type Rewriter struct {
	// ModulePath is the directory holding LLVMIRUtil.cmake.
	ModulePath string
	Flags      []string
}

var _ buildsys.Rewriter = (*Rewriter)(nil)

// NewRewriter returns a Rewriter using the LLVMIRUtil module in modulePath.
func NewRewriter(modulePath string) *Rewriter {
	return &Rewriter{ModulePath: modulePath, Flags: DefaultFlags}
}

func (r *Rewriter) Descriptor() string { return DescriptorName }

// Rewrite scans the descriptor at path. Project declarations are patched
// to enable both C and CXX. The last add_executable/add_library
// declaration becomes the base of an appended block declaring <t>_bc and
// <t>_linked; the returned label is <t>_linked. When no target is
// declared the file is not written and the label is empty. Calls whose
// arguments span several lines are read as one; a multi-line project()
// call that needs patching is collapsed onto its first line.
func (r *Rewriter) Rewrite(path string, lang buildsys.Language) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	lines := strings.SplitAfter(string(data), "\n")
	var project, target string
	for i := 0; i < len(lines); i++ {
		body, eol := splitEOL(lines[i])
		if !callRe.MatchString(body) {
			continue
		}
		start, joined := i, false
		for openParens(body) > 0 && i+1 < len(lines) {
			if !joined {
				body, joined = stripComment(body), true
			}
			i++
			var next string
			next, eol = splitEOL(lines[i])
			body += " " + strings.TrimSpace(stripComment(next))
		}

		if m := projectRe.FindStringSubmatch(body); m != nil {
			name, patched := patchProject(m)
			project = name
			if patched == body {
				continue
			}
			lines[start] = patched + eol
			for j := start + 1; j <= i; j++ {
				lines[j] = ""
			}
			continue
		}
		if m := targetRe.FindStringSubmatch(body); m != nil {
			if name, ok := targetName(m, project); ok {
				target = name
			}
		}
	}
	if target == "" {
		return "", nil
	}

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
	}
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		b.WriteString("\n")
	}
	b.WriteString(r.block(target, lang))

	if err := os.WriteFile(path, []byte(b.String()), fi.Mode().Perm()); err != nil {
		return "", err
	}
	return buildsys.LinkedTarget(target), nil
}

func (r *Rewriter) block(target string, lang buildsys.Language) string {
	bc := target + buildsys.BitcodeSuffix
	var b strings.Builder
	fmt.Fprintf(&b, "\n# hydrogit: linked bitcode for %s\n", target)
	fmt.Fprintf(&b, "list(APPEND CMAKE_MODULE_PATH %q)\n", filepathToCMake(r.ModulePath))
	b.WriteString("include(LLVMIRUtil)\n")
	fmt.Fprintf(&b, "set_target_properties(%s PROPERTIES LINKER_LANGUAGE %s)\n", target, lang)
	if len(r.Flags) > 0 {
		fmt.Fprintf(&b, "target_compile_options(%s PRIVATE %s)\n", target, strings.Join(r.Flags, " "))
	}
	fmt.Fprintf(&b, "llvmir_attach_bc_target(%s %s)\n", bc, target)
	fmt.Fprintf(&b, "add_dependencies(%s %s)\n", bc, target)
	fmt.Fprintf(&b, "llvmir_attach_link_target(%s %s)\n", buildsys.LinkedTarget(target), bc)
	return b.String()
}

// targetName resolves the declared name of a target match. Names built
// from variables other than the project name cannot be resolved.
func targetName(m []string, project string) (string, bool) {
	name := m[1]
	if project != "" {
		name = varRe.ReplaceAllString(name, project)
	}
	if strings.Contains(name, "${") {
		return "", false
	}
	for _, arg := range argRe.FindAllString(parenReplacer.Replace(m[2]), -1) {
		if nonBuildable[strings.ToUpper(arg)] {
			return "", false
		}
	}
	return name, true
}

// patchProject rewrites a project() call to enable C and CXX,
// keeping every other argument and language. It returns the project name.
func patchProject(m []string) (name, line string) {
	indent, inner, trailer := m[1], m[2], m[3]
	args := argRe.FindAllString(inner, -1)
	if len(args) == 0 {
		return "", m[0]
	}
	name = args[0]

	kept := []string{name}
	var langs []string
	inLangs := true // short form: project(name C CXX)
	for _, arg := range args[1:] {
		upper := strings.ToUpper(arg)
		if projectKeywords[upper] {
			inLangs = upper == "LANGUAGES"
			if !inLangs {
				kept = append(kept, arg)
			}
			continue
		}
		if inLangs {
			if upper != "C" && upper != "CXX" && upper != "NONE" {
				langs = append(langs, arg)
			}
			continue
		}
		kept = append(kept, arg)
	}
	langs = append(langs, "C", "CXX")

	call := fmt.Sprintf("project(%s LANGUAGES %s)", strings.Join(kept, " "), strings.Join(langs, " "))
	// Keep the original spelling when it already says the same thing.
	if strings.EqualFold(strings.Join(strings.Fields(m[0][len(indent):len(m[0])-len(trailer)]), " "), call) {
		return name, m[0]
	}
	return name, indent + call + trailer
}

// stripComment drops a trailing # comment outside quotes.
func stripComment(line string) string {
	quoted := false
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case c == '"':
			quoted = !quoted
		case c == '#' && !quoted:
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}

// openParens returns the parenthesis depth at the end of line, ignoring
// quoted text and comments.
func openParens(line string) int {
	depth, quoted := 0, false
	for _, c := range []byte(stripComment(line)) {
		switch {
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '(':
			depth++
		case c == ')':
			depth--
		}
	}
	return depth
}

func splitEOL(line string) (body, eol string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	}
	return line, ""
}

// filepathToCMake converts path separators; CMake treats backslashes as escapes.
func filepathToCMake(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
