// Package asset fingerprints the container image build context.
//
// The fingerprint is a sha256 over every file in the build context that
// .dockerignore does not exclude, walked in sorted order. It becomes the tag
// of the image in the bootstrap asset repository, so identical contexts
// always synthesize identical templates.
package asset

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/moby/patternmatcher"
	"github.com/moby/patternmatcher/ignorefile"
	"github.com/opencontainers/go-digest"
	"github.com/rs/zerolog/log"

	"github.com/lex00/tastack-go/intrinsics"
)

// Dockerfile is the build file expected at the root of the context.
const Dockerfile = "Dockerfile"

// ImageSource yields the image URI placed in the function's Code.ImageUri.
type ImageSource interface {
	URI(qualifier string) any
}

// ImageAsset is a fingerprinted build context.
type ImageAsset struct {
	Directory string
	Hash      string
	Files     int
}

// URI returns the asset's location in the bootstrap container asset repository.
func (a ImageAsset) URI(qualifier string) any {
	return intrinsics.Sub{String: fmt.Sprintf(
		"${AWS::AccountId}.dkr.ecr.${AWS::Region}.${AWS::URLSuffix}/cdk-%s-container-assets-${AWS::AccountId}-${AWS::Region}:%s",
		qualifier, a.Hash,
	)}
}

// Tag is the image tag the asset is published under.
func (a ImageAsset) Tag() string {
	return a.Hash
}

// ExternalImage is an image URI supplied verbatim, bypassing the asset repository.
type ExternalImage string

// URI returns the image URI unchanged.
func (e ExternalImage) URI(string) any {
	return string(e)
}

// RepositoryName returns the bootstrap container asset repository name.
func RepositoryName(qualifier, account, region string) string {
	return fmt.Sprintf("cdk-%s-container-assets-%s-%s", qualifier, account, region)
}

// Fingerprint hashes the build context at dir.
func Fingerprint(dir string) (ImageAsset, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ImageAsset{}, fmt.Errorf("resolve image directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return ImageAsset{}, fmt.Errorf("image directory: %w", err)
	}
	if !info.IsDir() {
		return ImageAsset{}, fmt.Errorf("image directory %s is not a directory", abs)
	}
	if _, err := os.Stat(filepath.Join(abs, Dockerfile)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ImageAsset{}, fmt.Errorf("no %s in image directory %s", Dockerfile, abs)
		}
		return ImageAsset{}, err
	}

	matcher, err := loadIgnore(filepath.Join(abs, ".dockerignore"))
	if err != nil {
		return ImageAsset{}, err
	}

	var files []string
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		ignored, err := matcher.MatchesOrParentMatches(rel)
		if err != nil {
			return fmt.Errorf("match %s: %w", rel, err)
		}
		// The build file and ignore file always shape the image.
		if ignored && rel != Dockerfile && rel != ".dockerignore" {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return ImageAsset{}, fmt.Errorf("walk image directory: %w", err)
	}
	sort.Strings(files)

	digester := digest.Canonical.Digester()
	h := digester.Hash()
	for _, rel := range files {
		_, _ = io.WriteString(h, rel)
		_, _ = h.Write([]byte{0})
		if err := hashFile(h, filepath.Join(abs, filepath.FromSlash(rel))); err != nil {
			return ImageAsset{}, err
		}
		_, _ = h.Write([]byte{0})
	}

	asset := ImageAsset{
		Directory: abs,
		Hash:      digester.Digest().Encoded(),
		Files:     len(files),
	}
	log.Debug().Str("dir", abs).Int("files", asset.Files).Str("hash", asset.Hash).Msg("fingerprinted image asset")
	return asset, nil
}

func loadIgnore(path string) (*patternmatcher.PatternMatcher, error) {
	var patterns []string
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		patterns, err = ignorefile.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}
	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}
	return matcher, nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("hash %s: %w", path, err)
	}
	return nil
}
