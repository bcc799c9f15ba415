package catalog_test

import (
	"go/types"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestAuthenticatorImplementations keeps catalog backends in their sanctioned
// packages. Adding a backend means updating the allowed list.
func TestAuthenticatorImplementations(t *testing.T) {
	if testing.Short() {
		t.Skip("loads every package in the module")
	}
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedTypes}
	pkgs, err := packages.Load(cfg, "examist/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	var auth *types.Interface
	for _, p := range pkgs {
		if p.PkgPath != "examist/internal/catalog" {
			continue
		}
		obj := p.Types.Scope().Lookup("Authenticator")
		if obj == nil {
			t.Fatalf("catalog.Authenticator not found")
		}
		iface, ok := obj.Type().Underlying().(*types.Interface)
		if !ok {
			t.Fatalf("catalog.Authenticator is not an interface")
		}
		auth = iface
	}
	if auth == nil {
		t.Fatalf("failed to resolve catalog.Authenticator")
	}

	allowed := map[string]bool{
		"examist/internal/catalog/memory":  true,
		"examist/internal/catalog/sqlcat":  true,
		"examist/internal/catalog/httpapi": true,
		"examist/internal/catalog/backend": true,
	}
	found := map[string]bool{}
	var unexpected []string
	for _, p := range pkgs {
		if p.Types == nil {
			continue
		}
		scope := p.Types.Scope()
		for _, name := range scope.Names() {
			named, ok := scope.Lookup(name).Type().(*types.Named)
			if !ok {
				continue
			}
			if _, isStruct := named.Underlying().(*types.Struct); !isStruct {
				continue
			}
			if !types.Implements(types.NewPointer(named), auth) {
				continue
			}
			if allowed[p.PkgPath] {
				found[p.PkgPath] = true
				continue
			}
			unexpected = append(unexpected, p.PkgPath+"."+name)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		_, file, line, _ := runtime.Caller(0)
		t.Fatalf("unexpected Authenticator implementations (extend the allowed list when adding a backend):\nfile=%s:%d\n%v", filepath.Base(file), line, unexpected)
	}
	for pkg := range allowed {
		if !found[pkg] {
			t.Errorf("%s no longer implements catalog.Authenticator", pkg)
		}
	}
}
