// Package walk implements the recipe object walker: a single-method visitor
// that is shown every owned string reachable inside a Recipe, exactly once,
// and may rewrite it in place. It is the mechanism the template-substitution
// pass (out of scope per spec.md §1) is built on.
//
// Two field groups are never visited: the BuildStyle tag (not a string to
// begin with) and the Verification block (fixed hashes and,
// for the PGP extension, URLs/fingerprints that must not be
// template-rewritten — signatures are verified against the literal bytes a
// recipe author wrote). Every other owned string, including map keys and
// list elements, is visited.
package walk

import "github.com/hob-build/hob/internal/recipe"

// Visitor is shown every owned string in a Recipe and may replace it.
type Visitor interface {
	EnterString(s *string)
}

// Func adapts a plain function to a Visitor.
type Func func(s *string)

func (f Func) EnterString(s *string) { f(s) }

// Walk visits every owned string in r, taking Recipe's own fields in
// declaration order. Playbooks are visited in map iteration order, which is
// not defined.
func Walk(r *recipe.Recipe, v Visitor) {
	v.EnterString(&r.Name)
	v.EnterString(&r.Version)
	v.EnterString(&r.Description)
	v.EnterString(&r.Home)
	walkSlice(r.License, v)
	walkSlice(r.Maintainer, v)
	walkSlice(r.Depends, v)
	walkSlice(r.Provides, v)
	v.EnterString(&r.SourceDir)

	for i := range r.Artifacts {
		r.Artifacts[i].Source = walkSource(r.Artifacts[i].Source, v)
		// Verification is intentionally skipped: digests are opaque bytes
		// and PGP urls/fingerprints must stay literal.
	}

	walkBuildStyleVars(&r.Style.Vars, v)

	for i := range r.Sides {
		s := &r.Sides[i]
		v.EnterString(&s.Name)
		v.EnterString(&s.Description)
		walkSlice(s.Depends, v)
		walkSlice(s.Claims, v)
	}

	for _, pb := range r.Playbooks {
		for i := range pb.Actions {
			pb.Actions[i] = walkAction(pb.Actions[i], v)
		}
	}
}

func walkSlice(s []string, v Visitor) {
	for i := range s {
		v.EnterString(&s[i])
	}
}

// walkSource rewrites a Source's owned strings and returns the (possibly
// new) value, since Source is stored by value inside an interface and can't
// be mutated through a pointer to the interface.
func walkSource(s recipe.Source, v Visitor) recipe.Source {
	switch src := s.(type) {
	case recipe.FetchSource:
		v.EnterString(&src.URL)
		v.EnterString(&src.FileName)
		return src
	default:
		return s
	}
}

func walkBuildStyleVars(vars *recipe.BuildStyleVars, v Visitor) {
	v.EnterString(&vars.ConfigureScript)
	v.EnterString(&vars.MakeCommand)
	walkSlice(vars.CCFlags, v)
	walkSlice(vars.CXXFlags, v)
	walkSlice(vars.ConfigureArgs, v)
	walkSlice(vars.MakeArgs, v)

	if len(vars.MakeEnv) == 0 {
		return
	}
	// Drain and reinsert: keys may themselves be rewritten, and Go map
	// semantics don't allow renaming a key in place without breaking
	// iteration, so we build a fresh map.
	rewritten := make(map[string]string, len(vars.MakeEnv))
	for k, val := range vars.MakeEnv {
		key, value := k, val
		v.EnterString(&key)
		v.EnterString(&value)
		rewritten[key] = value
	}
	vars.MakeEnv = rewritten
}

func walkAction(a recipe.Action, v Visitor) recipe.Action {
	switch act := a.(type) {
	case recipe.CcAction:
		walkSlice(act.Input, v)
		v.EnterString(&act.Output)
		return act
	case recipe.BinAction:
		walkSlice(act.Binaries, v)
		return act
	case recipe.ManAction:
		walkSlice(act.ManFiles, v)
		return act
	case recipe.LinkAction:
		walkSlice(act.Source, v)
		v.EnterString(&act.Target)
		return act
	case recipe.RmAction:
		walkSlice(act.Targets, v)
		return act
	case recipe.DirAction:
		walkSlice(act.Targets, v)
		return act
	default:
		// DefaultAction, ConfigureAction, MakeAction, MakeInstallAction
		// carry no strings.
		return a
	}
}
