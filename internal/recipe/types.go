// Package recipe holds the in-memory model the build engine consumes: the
// Recipe itself, its Artifacts, ActionPlaybooks, BuildStyle and Sides.
package recipe

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"
)

// Stage identifies one step of the build pipeline. The zero value is
// StagePrepare.
//
// CanonicalStages fixes the iteration order the engine drives: Prepare runs
// before Fetch even though most prose descriptions of this pipeline list
// Fetch first. Only the stages up to Install can be named in a recipe
// document; Split and Package are driver-only.
type Stage int

const (
	StagePrepare Stage = iota
	StageFetch
	StageExtract
	StageConfigure
	StageBuild
	StageInstall
	StageSplit
	StagePackage
)

// CanonicalStages is the fixed iteration order used by the engine driver.
var CanonicalStages = []Stage{
	StagePrepare,
	StageFetch,
	StageExtract,
	StageConfigure,
	StageBuild,
	StageInstall,
	StageSplit,
	StagePackage,
}

// NameableStages are the stages a recipe document may declare a playbook for.
var NameableStages = []Stage{StagePrepare, StageFetch, StageExtract, StageConfigure, StageBuild, StageInstall}

func (s Stage) String() string {
	switch s {
	case StagePrepare:
		return "prepare"
	case StageFetch:
		return "fetch"
	case StageExtract:
		return "extract"
	case StageConfigure:
		return "configure"
	case StageBuild:
		return "build"
	case StageInstall:
		return "install"
	case StageSplit:
		return "split"
	case StagePackage:
		return "package"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Source is a tagged variant describing where an Artifact's bytes come from.
// Only Fetch exists today; the interface leaves room for future variants
// (e.g. a local path or a git checkout) without disturbing callers that
// switch on concrete types.
type Source interface {
	isSource()
}

// FetchSource downloads an artifact from a URL.
type FetchSource struct {
	URL      string
	FileName string // defaults to the last path segment of URL, before '?'
}

func (FetchSource) isSource() {}

// EffectiveFileName returns FileName if set, else derives it from the URL.
func (f FetchSource) EffectiveFileName() string {
	if f.FileName != "" {
		return f.FileName
	}
	u := f.URL
	if idx := strings.Index(u, "?"); idx != -1 {
		u = u[:idx]
	}
	if parsed, err := url.Parse(u); err == nil && parsed.Path != "" {
		u = parsed.Path
	}
	if idx := strings.LastIndex(u, "/"); idx != -1 {
		return u[idx+1:]
	}
	return u
}

// PGPVerification supplements the sha256 digest with a detached-signature
// check. This is a SPEC_FULL.md addition: recipes that omit it behave exactly
// as the sha256-only Verification described in spec.md.
type PGPVerification struct {
	SignatureURL   string
	KeyURL         string
	KeyFingerprint string
}

// Verification describes how a fetched Artifact's bytes must be checked.
type Verification struct {
	SHA256 *[32]byte
	PGP    *PGPVerification
}

// Artifact pairs a Source with its Verification.
type Artifact struct {
	Source       Source
	Verification Verification
}

// HashID is the artifact's stable cache identity: SHA256(method_tag ||
// hash_data). Two artifacts with the same method and hash_data share a cache
// slot regardless of verification, by construction.
func (a Artifact) HashID() [32]byte {
	var method string
	var hashData []byte
	switch s := a.Source.(type) {
	case FetchSource:
		method = "fetch"
		hashData = []byte(s.URL)
	default:
		panic(fmt.Sprintf("recipe: unknown source variant %T", a.Source))
	}
	h := sha256.New()
	h.Write([]byte(method))
	h.Write(hashData)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// FileName returns the artifact's cache file name.
func (a Artifact) FileName() string {
	switch s := a.Source.(type) {
	case FetchSource:
		return s.EffectiveFileName()
	default:
		panic(fmt.Sprintf("recipe: unknown source variant %T", a.Source))
	}
}

// Action is a tagged variant of one playbook step.
type Action interface {
	isAction()
}

// DefaultAction is the splice point where the stage's built-in behavior runs.
type DefaultAction struct{}

func (DefaultAction) isAction() {}

// CcAction compiles Input into Output with gcc.
type CcAction struct {
	Input  []string
	Output string
}

func (CcAction) isAction() {}

// ConfigureAction runs the build style's configure script.
type ConfigureAction struct{}

func (ConfigureAction) isAction() {}

// MakeAction runs make.
type MakeAction struct{}

func (MakeAction) isAction() {}

// MakeInstallAction runs make install into DESTDIR.
type MakeInstallAction struct{}

func (MakeInstallAction) isAction() {}

// BinAction installs named binaries.
type BinAction struct {
	Binaries []string
}

func (BinAction) isAction() {}

// ManAction installs named man pages, sorted into man<N> by extension.
type ManAction struct {
	ManFiles []string
}

func (ManAction) isAction() {}

// LinkAction symlinks each Source onto Target.
type LinkAction struct {
	Source []string
	Target string
}

func (LinkAction) isAction() {}

// RmAction removes each Target (recursively if a real directory).
type RmAction struct {
	Targets []string
}

func (RmAction) isAction() {}

// DirAction creates each Target directory (mkdir -p semantics).
type DirAction struct {
	Targets []string
}

func (DirAction) isAction() {}

// ActionPlaybook is the ordered list of actions the Player executes for one
// stage.
type ActionPlaybook struct {
	Stage   Stage
	Actions []Action
}

// BuildStyleTag selects the canonical action sequence a build-style default
// body runs for Configure/Build/Install.
type BuildStyleTag int

const (
	StyleNoop BuildStyleTag = iota
	StyleConfigure
	StyleGnuConfigure
)

func (t BuildStyleTag) String() string {
	switch t {
	case StyleNoop:
		return "noop"
	case StyleConfigure:
		return "configure"
	case StyleGnuConfigure:
		return "gnu-configure"
	default:
		return fmt.Sprintf("style(%d)", int(t))
	}
}

// BuildStyleVars are the (all optional) knobs a style's default actions
// consult.
type BuildStyleVars struct {
	CCFlags         []string
	CXXFlags        []string
	ConfigureScript string
	ConfigureArgs   []string
	MakeCommand     string
	MakeUseEnv      bool
	MakeArgs        []string
	MakeEnv         map[string]string
}

// BuildStyle is the recipe's chosen style tag plus its variables.
type BuildStyle struct {
	Tag  BuildStyleTag
	Vars BuildStyleVars
}

// Side is a sub-package carved out of the recipe's install tree by glob
// claims.
type Side struct {
	Name        string
	Description string
	Depends     []string
	Claims      []string
}

// Options holds the small set of recipe-level toggles.
type Options struct {
	// Strip is nil unless the document explicitly set options.strip.
	Strip *bool
}

// Recipe is the fully parsed, in-memory description of one buildable
// package. It is constructed once from a document, mutated in place by the
// template walker, then treated as immutable for the build.
type Recipe struct {
	Name        string
	Version     string // required; parse fails without it
	Revision    int    // non-negative
	Description string
	Home        string
	License     []string
	Maintainer  []string
	Depends     []string
	Provides    []string
	SourceDir   string // defaults to "{name}-{version}"
	Artifacts   []Artifact
	Style       BuildStyle
	Sides       []Side
	Options     Options
	Playbooks   map[Stage]ActionPlaybook
}

// ApplyDefaults fills in fields the document left unset: source directory
// name and each side's inherited fields. Called once, immediately after
// parsing, before the template walker runs.
func (r *Recipe) ApplyDefaults() {
	if r.SourceDir == "" {
		r.SourceDir = fmt.Sprintf("%s-%s", r.Name, r.Version)
	}
	for i := range r.Sides {
		s := &r.Sides[i]
		if s.Description == "" {
			s.Description = r.Description
		}
	}
}

// SelfRef is the recipe's stable identity string used by the template
// walker: "{name}-{version}-r{revision}".
func (r *Recipe) SelfRef() string {
	return fmt.Sprintf("%s-%s-r%d", r.Name, r.Version, r.Revision)
}

// Playbook returns the playbook declared for stage, or nil if the document
// didn't name one.
func (r *Recipe) Playbook(stage Stage) *ActionPlaybook {
	if r.Playbooks == nil {
		return nil
	}
	if pb, ok := r.Playbooks[stage]; ok {
		return &pb
	}
	return nil
}
