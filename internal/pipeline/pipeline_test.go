package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestParserParsePromerheus(t *testing.T) {
	parser := NewParser(projectRoot(t))

	pl, err := parser.Parse("testdata/pipelines/promerheus.yml")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if pl.Name != "promerheus" {
		t.Fatalf("expected name promerheus, got %q", pl.Name)
	}
	if len(pl.Steps) != 6 {
		t.Fatalf("expected 6 steps, got %d", len(pl.Steps))
	}

	market := pl.Steps[5]
	if market.Name != "MarketPlace" || market.ArtifactName() != "MarketPlace" {
		t.Fatalf("unexpected marketplace step: %+v", market)
	}
	refs := market.References()
	if len(refs) != 2 || refs[0] != "PromerheusToken" || refs[1] != "PromerheusNFT" {
		t.Fatalf("unexpected references: %v", refs)
	}
	if err := Validate(pl.Steps); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestParserParseLiterals(t *testing.T) {
	parser := NewParser(projectRoot(t))

	pl, err := parser.Parse("testdata/pipelines/literals.yml")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if pl.Name != "literals" {
		t.Fatalf("expected name to fall back to file name, got %q", pl.Name)
	}

	token := pl.Steps[0]
	want := []any{"Promerheus", "PRM", "1000000000000000000000000", true}
	if len(token.Args) != len(want) {
		t.Fatalf("expected %d args, got %d", len(want), len(token.Args))
	}
	for i, arg := range token.Args {
		if arg.Kind != KindLiteral {
			t.Fatalf("arg %d: expected literal, got %s", i, arg.Kind)
		}
		if arg.Value != want[i] {
			t.Fatalf("arg %d: expected %#v, got %#v", i, want[i], arg.Value)
		}
	}

	vault := pl.Steps[1]
	if vault.ArtifactName() != "Staking" {
		t.Fatalf("expected contract override, got %q", vault.ArtifactName())
	}
	if vault.Args[0].Kind != KindReference || vault.Args[0].Ref != "Token" {
		t.Fatalf("expected reference to Token, got %+v", vault.Args[0])
	}
	if vault.Args[1].Value != "0x10" {
		t.Fatalf("expected hex literal kept as text, got %#v", vault.Args[1].Value)
	}
	list, ok := vault.Args[2].Value.([]any)
	if !ok || len(list) != 3 || list[2] != "3" {
		t.Fatalf("expected sequence literal, got %#v", vault.Args[2].Value)
	}

	fixed := pl.Steps[2]
	if fixed.Args[0].Kind != KindLiteral || fixed.Args[0].Value != "0xAA214E8613c22f7116Eb9357C8A1CC3FaddAFA57" {
		t.Fatalf("expected literal address, got %+v", fixed.Args[0])
	}
	if err := Validate(pl.Steps); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestDecodeRejectsBadArgs(t *testing.T) {
	cases := map[string]string{
		"null":        "steps:\n  - name: A\n    args:\n      - ~\n",
		"unknown key": "steps:\n  - name: A\n    args:\n      - addr: B\n",
		"empty ref":   "steps:\n  - name: A\n    args:\n      - ref: \"\"\n",
		"two keys":    "steps:\n  - name: A\n    args:\n      - {ref: B, value: 1}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc), "inline.yml")
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if cfgErr.Step != "A" {
				t.Fatalf("expected step A in error, got %q", cfgErr.Step)
			}
		})
	}
}

func TestDecodeEmptyDocument(t *testing.T) {
	_, err := Decode(strings.NewReader(""), "empty.yml")
	if err == nil || !strings.Contains(err.Error(), "empty document") {
		t.Fatalf("expected empty document error, got %v", err)
	}
}

func TestValidateEarlierReferences(t *testing.T) {
	steps := []Step{
		{Name: "Token"},
		{Name: "NFT"},
		{Name: "Marketplace", Args: []ArgSpec{Reference("Token"), Reference("NFT")}},
	}
	if err := Validate(steps); err != nil {
		t.Fatalf("expected valid pipeline, got %v", err)
	}
}

func TestValidateRejectsOrdering(t *testing.T) {
	cases := []struct {
		name    string
		steps   []Step
		index   int
		message string
	}{
		{
			name: "forward reference",
			steps: []Step{
				{Name: "Marketplace", Args: []ArgSpec{Reference("Token")}},
				{Name: "Token"},
			},
			index:   0,
			message: "not deployed by an earlier step",
		},
		{
			name:    "self reference",
			steps:   []Step{{Name: "Token", Args: []ArgSpec{Reference("Token")}}},
			index:   0,
			message: "references itself",
		},
		{
			name: "unknown reference",
			steps: []Step{
				{Name: "Token"},
				{Name: "Marketplace", Args: []ArgSpec{Literal("x"), Reference("NFT")}},
			},
			index:   1,
			message: "argument 1",
		},
		{
			name:    "duplicate name",
			steps:   []Step{{Name: "Token"}, {Name: "Token"}},
			index:   1,
			message: "duplicate step name",
		},
		{
			name:    "empty name",
			steps:   []Step{{Name: "Token"}, {Name: " "}},
			index:   1,
			message: "name is empty",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.steps)
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if cfgErr.Index != tc.index {
				t.Fatalf("expected index %d, got %d", tc.index, cfgErr.Index)
			}
			if !strings.Contains(err.Error(), tc.message) {
				t.Fatalf("expected %q in %q", tc.message, err.Error())
			}
		})
	}
}

func TestValidateEmpty(t *testing.T) {
	err := Validate(nil)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if err.Error() != "invalid pipeline: no steps defined" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

type mapLookup map[string]common.Address

func (m mapLookup) Resolve(name string) (common.Address, error) {
	addr, ok := m[name]
	if !ok {
		return common.Address{}, errors.New("missing " + name)
	}
	return addr, nil
}

func TestResolveArgs(t *testing.T) {
	token := common.HexToAddress("0x1000000000000000000000000000000000000001")
	nft := common.HexToAddress("0x2000000000000000000000000000000000000002")
	lookup := mapLookup{"Token": token, "NFT": nft}

	got, err := ResolveArgs([]ArgSpec{Reference("Token"), Literal("42"), Reference("NFT")}, lookup)
	if err != nil {
		t.Fatalf("ResolveArgs: %v", err)
	}
	if got[0] != token || got[1] != "42" || got[2] != nft {
		t.Fatalf("unexpected resolved args: %v", got)
	}

	_, err = ResolveArgs([]ArgSpec{Reference("Wager")}, lookup)
	if err == nil || !strings.Contains(err.Error(), "argument 0 (ref:Wager)") {
		t.Fatalf("expected wrapped lookup error, got %v", err)
	}
}

func projectRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	root := filepath.Clean(filepath.Join(wd, "..", ".."))
	if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
		t.Fatalf("locate project root: %v", err)
	}
	return root
}
