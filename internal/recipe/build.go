package recipe

import (
	"encoding/hex"
	"fmt"

	"github.com/hob-build/hob/internal/recipe/doc"
)

// ParseDocument parses src (the §6 concrete syntax) into every top-level
// `recipe` node, converting each into a Recipe. Parsing is additive: all
// ParseErrors found across every recipe node are returned together with
// whatever partial recipes could still be built. A strict caller should
// treat any non-empty ParseErrors as fatal; a lenient one may proceed with
// the partial recipes.
func ParseDocument(src string) ([]*Recipe, ParseErrors) {
	nodes, err := doc.ParseDoc(src)
	if err != nil {
		return nil, ParseErrors{{Kind: ErrTypeMismatch, Msg: err.Error()}}
	}

	var recipes []*Recipe
	var errs ParseErrors
	for _, n := range nodes {
		if n.Name != "recipe" {
			continue
		}
		r, rerrs := buildRecipe(n)
		errs = append(errs, rerrs...)
		if r != nil {
			r.ApplyDefaults()
			recipes = append(recipes, r)
		}
	}
	return recipes, errs
}

func buildRecipe(n doc.Node) (*Recipe, ParseErrors) {
	var errs ParseErrors
	r := &Recipe{Playbooks: map[Stage]ActionPlaybook{}}

	pos := n.Positionals()
	if len(pos) > 0 {
		r.Name = pos[0]
	} else {
		errs = append(errs, &ParseError{Pos: n.Pos, Kind: ErrMissingField, Msg: "recipe requires a name"})
	}

	seenSingleton := map[string]bool{}
	singleton := func(name string) (doc.Node, bool) {
		children := n.ChildrenNamed(name)
		if len(children) == 0 {
			return doc.Node{}, false
		}
		if len(children) > 1 && !seenSingleton[name] {
			seenSingleton[name] = true
			errs = append(errs, &ParseError{Pos: children[1].Pos, Kind: ErrDuplicateSingleton,
				Msg: fmt.Sprintf("%q may only appear once", name)})
		}
		return children[0], true
	}

	if v, ok := singleton("version"); ok {
		if p := v.Positionals(); len(p) > 0 {
			r.Version = p[0]
		}
	}
	if r.Version == "" {
		errs = append(errs, &ParseError{Pos: n.Pos, Kind: ErrMissingField, Msg: "recipe requires a version"})
	}

	if v, ok := singleton("description"); ok {
		r.Description = firstString(v)
	}
	if v, ok := singleton("home"); ok {
		r.Home = firstString(v)
	}
	if v, ok := singleton("source-dir"); ok {
		r.SourceDir = firstString(v)
	}

	r.Depends = buildExtendList(n, "depends", nil)
	r.Provides = buildExtendList(n, "provides", nil)
	r.License = buildReplaceList(n, "license")
	r.Maintainer = buildReplaceList(n, "maintainer")

	if v, ok := singleton("artifacts"); ok {
		for _, fetchNode := range v.ChildrenNamed("fetch") {
			art, aerrs := buildArtifact(fetchNode)
			errs = append(errs, aerrs...)
			r.Artifacts = append(r.Artifacts, art)
		}
	}

	if v, ok := singleton("style"); ok {
		style, serrs := buildStyle(v)
		errs = append(errs, serrs...)
		r.Style = style
	}

	if v, ok := singleton("options"); ok {
		if stripNode, ok := v.Child("strip"); ok {
			if b, ok := stripNode.BoolValue(); ok {
				r.Options.Strip = &b
			} else {
				errs = append(errs, &ParseError{Pos: stripNode.Pos, Kind: ErrTypeMismatch, Msg: "options.strip requires a boolean"})
			}
		}
	}

	for _, stage := range NameableStages {
		children := n.ChildrenNamed(stage.String())
		if len(children) == 0 {
			continue
		}
		if len(children) > 1 {
			errs = append(errs, &ParseError{Pos: children[1].Pos, Kind: ErrDuplicateSingleton,
				Msg: fmt.Sprintf("stage %q may only appear once", stage)})
		}
		pb, perrs := buildPlaybook(stage, children[0])
		errs = append(errs, perrs...)
		r.Playbooks[stage] = pb
	}

	for _, sideNode := range n.ChildrenNamed("side") {
		side, serrs := buildSide(sideNode, r.Depends)
		errs = append(errs, serrs...)
		r.Sides = append(r.Sides, side)
	}

	return r, errs
}

func firstString(n doc.Node) string {
	p := n.Positionals()
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// buildExtendList folds every occurrence of `name` children in document
// order: extends=true (the default) appends to the running list, extends
// false replaces it. base seeds the running list (used by sides, which
// inherit the parent recipe's depends).
func buildExtendList(n doc.Node, name string, base []string) []string {
	out := append([]string(nil), base...)
	for _, c := range n.ChildrenNamed(name) {
		extends := true
		if v, ok := c.Property("extends"); ok && v.IsBool {
			extends = v.Bool
		}
		if !extends {
			out = append([]string(nil), c.Positionals()...)
		} else {
			out = append(out, c.Positionals()...)
		}
	}
	return out
}

// buildReplaceList folds every occurrence of `name` children: each one
// replaces whatever the list held before it.
func buildReplaceList(n doc.Node, name string) []string {
	var out []string
	for _, c := range n.ChildrenNamed(name) {
		out = append([]string(nil), c.Positionals()...)
	}
	return out
}

func buildArtifact(n doc.Node) (Artifact, ParseErrors) {
	var errs ParseErrors
	var a Artifact

	url, ok := n.Child("url")
	if !ok {
		errs = append(errs, &ParseError{Pos: n.Pos, Kind: ErrMissingField, Msg: "fetch artifact requires 'url'"})
	}
	fs := FetchSource{URL: firstString(url)}
	if nameNode, ok := n.Child("name"); ok {
		fs.FileName = firstString(nameNode)
	}
	a.Source = fs

	if shaNode, ok := n.Child("sha256"); ok {
		hexStr := firstString(shaNode)
		raw, err := hex.DecodeString(hexStr)
		if err != nil {
			errs = append(errs, &ParseError{Pos: shaNode.Pos, Kind: ErrMalformedHex, Msg: fmt.Sprintf("sha256 is not valid hex: %v", err)})
		} else if len(raw) != 32 {
			errs = append(errs, &ParseError{Pos: shaNode.Pos, Kind: ErrWrongLengthDigest,
				Msg: fmt.Sprintf("sha256 must be 32 bytes (64 hex chars), got %d bytes", len(raw))})
		} else {
			var digest [32]byte
			copy(digest[:], raw)
			a.Verification.SHA256 = &digest
		}
	}
	return a, errs
}

func buildStyle(n doc.Node) (BuildStyle, ParseErrors) {
	var errs ParseErrors
	var style BuildStyle

	name := firstString(n)
	switch name {
	case "", "noop":
		style.Tag = StyleNoop
	case "configure":
		style.Tag = StyleConfigure
	case "gnu-configure":
		style.Tag = StyleGnuConfigure
	default:
		errs = append(errs, &ParseError{Pos: n.Pos, Kind: ErrTypeMismatch, Msg: fmt.Sprintf("unknown build style %q", name)})
	}

	if cs, ok := n.Child("configure-script"); ok {
		style.Vars.ConfigureScript = firstString(cs)
	}
	style.Vars.ConfigureArgs = buildExtendList(n, "configure-args", nil)
	if cc, ok := n.Child("cc-flags"); ok {
		style.Vars.CCFlags = cc.Positionals()
	}
	if cxx, ok := n.Child("cxx-flags"); ok {
		style.Vars.CXXFlags = cxx.Positionals()
	}
	if mc, ok := n.Child("make-command"); ok {
		style.Vars.MakeCommand = firstString(mc)
	}
	style.Vars.MakeArgs = buildExtendList(n, "make-args", nil)
	if ue, ok := n.Child("make-use-env"); ok {
		if b, ok := ue.BoolValue(); ok {
			style.Vars.MakeUseEnv = b
		}
	}
	if env, ok := n.Child("make-env"); ok {
		style.Vars.MakeEnv = map[string]string{}
		for _, e := range env.Entries {
			if e.Property != "" {
				style.Vars.MakeEnv[e.Property] = e.Value.Str
			}
		}
	}

	return style, errs
}

func buildPlaybook(stage Stage, n doc.Node) (ActionPlaybook, ParseErrors) {
	var errs ParseErrors
	pb := ActionPlaybook{Stage: stage}
	for _, actionNode := range n.Children {
		action, aerrs := buildAction(actionNode)
		errs = append(errs, aerrs...)
		if action != nil {
			pb.Actions = append(pb.Actions, action)
		}
	}
	return pb, errs
}

func buildAction(n doc.Node) (Action, ParseErrors) {
	switch n.Name {
	case ".default":
		return DefaultAction{}, nil
	case "make":
		return MakeAction{}, nil
	case "make-install":
		return MakeInstallAction{}, nil
	case "configure":
		return ConfigureAction{}, nil
	case "cc":
		output, _ := n.Property("output")
		return CcAction{Input: n.Positionals(), Output: output.Str}, nil
	case "bin":
		return BinAction{Binaries: n.Positionals()}, nil
	case "man":
		return ManAction{ManFiles: n.Positionals()}, nil
	case "rm":
		return RmAction{Targets: n.Positionals()}, nil
	case "dir":
		return DirAction{Targets: n.Positionals()}, nil
	case "link":
		target, ok := n.Property("target")
		sources := n.Positionals()
		var errs ParseErrors
		if !ok || target.Str == "" || len(sources) == 0 {
			errs = append(errs, &ParseError{Pos: n.Pos, Kind: ErrInvalidAction,
				Msg: "link requires at least one source and a target"})
		}
		return LinkAction{Source: sources, Target: target.Str}, errs
	default:
		return nil, ParseErrors{{Pos: n.Pos, Kind: ErrUnknownAction, Msg: fmt.Sprintf("unknown action %q", n.Name)}}
	}
}

func buildSide(n doc.Node, parentDepends []string) (Side, ParseErrors) {
	var errs ParseErrors
	side := Side{Name: firstString(n)}
	if v, ok := n.Child("description"); ok {
		side.Description = firstString(v)
	}
	side.Depends = buildExtendList(n, "depends", parentDepends)
	for _, c := range n.ChildrenNamed("claim") {
		side.Claims = append(side.Claims, c.Positionals()...)
	}
	return side, errs
}
