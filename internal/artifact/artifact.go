// Package artifact loads compiled contract artifacts produced by Hardhat or
// Foundry.
package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrNotFound is returned when no artifact carries the requested name.
var ErrNotFound = errors.New("artifact not found")

// Artifact is a deployable contract: creation bytecode plus its ABI.
type Artifact struct {
	Name       string
	SourceName string
	Path       string
	ABI        abi.ABI
	Bytecode   []byte
	// Compiler is the solc version recorded in the build output, if any.
	Compiler string
}

// QualifiedName returns "source:Name" when the source is known.
func (a Artifact) QualifiedName() string {
	if a.SourceName == "" {
		return a.Name
	}
	return a.SourceName + ":" + a.Name
}

// Bytecode holds creation code. Hardhat writes it as a hex string, Foundry as
// an object with an "object" field.
type Bytecode struct {
	Object string `json:"object"`
}

// UnmarshalJSON accepts both the string and object encodings.
func (b *Bytecode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &b.Object)
	}
	type plain Bytecode
	return json.Unmarshal(data, (*plain)(b))
}

// contractArtifact is the on-disk JSON shape shared by both toolchains.
type contractArtifact struct {
	Format       string          `json:"_format"`
	ContractName string          `json:"contractName"`
	SourceName   string          `json:"sourceName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     Bytecode        `json:"bytecode"`
	Metadata     json.RawMessage `json:"metadata"`
}

// compilerMetadata is the part of solc's metadata Foundry embeds. Older
// Foundry versions store the metadata as a JSON string.
type compilerMetadata struct {
	Compiler struct {
		Version string `json:"version"`
	} `json:"compiler"`
}

func compilerFromMetadata(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return ""
		}
		raw = json.RawMessage(inner)
	}
	var meta compilerMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return ""
	}
	return meta.Compiler.Version
}

// compilerFromBuildInfo follows a Hardhat <Name>.dbg.json to its build-info
// file and returns the solc version recorded there.
func compilerFromBuildInfo(artifactPath string) string {
	dbgPath := strings.TrimSuffix(artifactPath, ".json") + ".dbg.json"
	data, err := os.ReadFile(dbgPath)
	if err != nil {
		return ""
	}
	var dbg struct {
		BuildInfo string `json:"buildInfo"`
	}
	if err := json.Unmarshal(data, &dbg); err != nil || dbg.BuildInfo == "" {
		return ""
	}
	f, err := os.Open(filepath.Join(filepath.Dir(dbgPath), filepath.FromSlash(dbg.BuildInfo)))
	if err != nil {
		return ""
	}
	defer f.Close()
	var info struct {
		SolcVersion string `json:"solcVersion"`
	}
	if err := json.NewDecoder(f).Decode(&info); err != nil {
		return ""
	}
	return info.SolcVersion
}

// Load reads and decodes a single artifact file.
func Load(path string) (Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("read artifact %q: %w", path, err)
	}
	art, err := Decode(data, path)
	if err != nil {
		return Artifact{}, err
	}
	if art.Compiler == "" {
		art.Compiler = compilerFromBuildInfo(path)
	}
	return art, nil
}

// Decode parses artifact JSON. path is used for the fallback contract name
// and messages.
func Decode(data []byte, path string) (Artifact, error) {
	var raw contractArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return Artifact{}, fmt.Errorf("parse artifact %q: %w", path, err)
	}
	if len(raw.ABI) == 0 {
		return Artifact{}, fmt.Errorf("artifact %q has no abi", path)
	}

	parsed, err := abi.JSON(bytes.NewReader(raw.ABI))
	if err != nil {
		return Artifact{}, fmt.Errorf("parse abi in %q: %w", path, err)
	}

	name := raw.ContractName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	object := strings.TrimSpace(raw.Bytecode.Object)
	if object == "" || object == "0x" {
		return Artifact{}, fmt.Errorf("artifact %q has no creation bytecode (abstract contract or interface?)", name)
	}
	if !strings.HasPrefix(object, "0x") {
		object = "0x" + object
	}
	if strings.Contains(object, "__") {
		return Artifact{}, fmt.Errorf("artifact %q has unlinked library references", name)
	}
	code, err := hexutil.Decode(object)
	if err != nil {
		return Artifact{}, fmt.Errorf("decode bytecode of %q: %w", name, err)
	}

	return Artifact{
		Name:       name,
		SourceName: raw.SourceName,
		Path:       path,
		ABI:        parsed,
		Bytecode:   code,
		Compiler:   compilerFromMetadata(raw.Metadata),
	}, nil
}

// Resolver finds artifacts by contract name beneath a build output directory.
type Resolver struct {
	dir   string
	index map[string][]entry
}

type entry struct {
	path      string
	qualified string
}

// NewResolver indexes every artifact JSON file under dir.
func NewResolver(dir string) (*Resolver, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("artifacts directory %q not found; compile the contracts first", dir)
		}
		return nil, fmt.Errorf("stat artifacts directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("artifacts path %q is not a directory", dir)
	}

	r := &Resolver{dir: dir, index: make(map[string][]entry)}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if d.Name() == "build-info" || d.Name() == "cache" {
				return filepath.SkipDir
			}
			return nil
		}
		base := d.Name()
		if filepath.Ext(base) != ".json" || strings.HasSuffix(base, ".dbg.json") {
			return nil
		}
		name := strings.TrimSuffix(base, ".json")
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = path
		}
		// Both toolchains nest artifacts as <source>.sol/<Name>.json.
		source := filepath.ToSlash(filepath.Dir(rel))
		r.index[name] = append(r.index[name], entry{path: path, qualified: source + ":" + name})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index artifacts in %q: %w", dir, err)
	}
	for name := range r.index {
		sort.Slice(r.index[name], func(i, j int) bool {
			return r.index[name][i].qualified < r.index[name][j].qualified
		})
	}
	return r, nil
}

// Artifact returns the artifact for name, which is either a bare contract
// name or "path/File.sol:Name" when the bare name is ambiguous.
func (r *Resolver) Artifact(name string) (Artifact, error) {
	bare := name
	qualifier := ""
	if idx := strings.LastIndex(name, ":"); idx != -1 {
		qualifier = strings.TrimPrefix(name[:idx], "contracts/")
		bare = name[idx+1:]
	}

	candidates := r.index[bare]
	if qualifier != "" {
		filtered := candidates[:0:0]
		for _, c := range candidates {
			source := strings.TrimSuffix(c.qualified, ":"+bare)
			if source == qualifier || strings.HasSuffix(source, "/"+qualifier) {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}

	switch len(candidates) {
	case 0:
		return Artifact{}, fmt.Errorf("%w: %q in %s", ErrNotFound, name, r.dir)
	case 1:
		return Load(candidates[0].path)
	default:
		options := make([]string, 0, len(candidates))
		for _, c := range candidates {
			options = append(options, c.qualified)
		}
		return Artifact{}, fmt.Errorf("artifact %q is ambiguous; use one of %s", name, strings.Join(options, ", "))
	}
}

// Names lists the indexed contract names in sorted order.
func (r *Resolver) Names() []string {
	names := make([]string, 0, len(r.index))
	for name := range r.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
