package manifest

// Validate checks cross-referential rules that fromGeneric cannot check
// while it is still building the manifest piece by piece: that every
// "using" target resolves to either a sibling library or the name of a
// declared dependency, and that libraries do not use each other in a
// cycle.
func Validate(m *Manifest) error {
	if len(m.Libraries) == 0 {
		return errf("manifest %s declares no libraries", m.Name)
	}

	depNames := make(map[string]bool, len(m.Dependencies))
	for _, d := range m.Dependencies {
		if d.Expr.Name == m.Name {
			return errf("manifest %s declares a dependency on itself", m.Name)
		}
		depNames[string(d.Expr.Name)] = true
	}
	libNames := make(map[string]bool, len(m.Libraries))
	for _, lib := range m.Libraries {
		libNames[string(lib.Name)] = true
	}

	resolves := func(lib *Library, uses []Use, listName string) error {
		localDeps := make(map[string]bool, len(lib.Dependencies))
		for _, d := range lib.Dependencies {
			localDeps[string(d.Expr.Name)] = true
		}
		for _, d := range lib.TestDependencies {
			localDeps[string(d.Expr.Name)] = true
		}
		for _, u := range uses {
			if libNames[u.Lib] || depNames[u.Lib] || localDeps[u.Lib] {
				continue
			}
			return errf("library %q: %s entry %q does not name a sibling library or a declared dependency",
				lib.Name, listName, u.Lib)
		}
		return nil
	}

	for i := range m.Libraries {
		lib := &m.Libraries[i]
		if err := resolves(lib, lib.Uses, "using"); err != nil {
			return err
		}
		if err := resolves(lib, lib.TestUses, "test-using"); err != nil {
			return err
		}
	}

	return checkUseCycles(m)
}
