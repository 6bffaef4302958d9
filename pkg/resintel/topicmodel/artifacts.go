package topicmodel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/resintel/pkg/resintel/embed"
	"github.com/cognicore/resintel/pkg/resintel/internalerr"
)

// DefaultArtifactName is the object or file name the artifacts are stored under.
const DefaultArtifactName = "topicmodel.yaml"

// Artifacts are the pre-fitted, corpus-independent stages shared by every model.
// They are read-only once loaded.
type Artifacts struct {
	// Embedding records the embedder the reducer was fitted against.
	Embedding struct {
		Name      string `yaml:"name"`
		Dimension int    `yaml:"dimension"`
	} `yaml:"embedding"`
	Reducer    *PCA             `yaml:"reducer"`
	Vectorizer *CountVectorizer `yaml:"vectorizer"`
	Weighting  *CTFIDF          `yaml:"ctfidf"`
}

// Validate reports the first missing stage as ErrModelUnavailable.
func (a *Artifacts) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: no artifacts", internalerr.ErrModelUnavailable)
	}
	if in, out := a.Reducer.Dims(); in == 0 || out == 0 {
		return fmt.Errorf("%w: reducer missing", internalerr.ErrModelUnavailable)
	}
	if len(a.Reducer.Mean) != len(a.Reducer.Components) {
		return fmt.Errorf("%w: reducer mean and components disagree", internalerr.ErrModelUnavailable)
	}
	if a.Vectorizer == nil {
		return fmt.Errorf("%w: vectorizer missing", internalerr.ErrModelUnavailable)
	}
	if a.Weighting == nil {
		return fmt.Errorf("%w: term weighting missing", internalerr.ErrModelUnavailable)
	}
	return nil
}

// NewModel builds an unfitted model from the shared stages.
func (a *Artifacts) NewModel(clusterer Clusterer, representation Representation) (*Model, error) {
	return a.NewModelTopN(clusterer, representation, DefaultTopNWords)
}

// NewModelTopN is NewModel keeping topN terms per topic.
func (a *Artifacts) NewModelTopN(clusterer Clusterer, representation Representation, topN int) (*Model, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return New(Config{
		Reducer:        a.Reducer,
		Clusterer:      clusterer,
		Vectorizer:     a.Vectorizer,
		Weighting:      *a.Weighting,
		Representation: representation,
		TopNWords:      topN,
	})
}

// ParseArtifacts decodes YAML artifacts and validates them.
func ParseArtifacts(r io.Reader) (*Artifacts, error) {
	var a Artifacts
	if err := yaml.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: decode artifacts: %v", internalerr.ErrModelUnavailable, err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	a.Vectorizer.Prepare()
	return &a, nil
}

// Write encodes the artifacts as YAML.
func (a *Artifacts) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(a); err != nil {
		return err
	}
	return enc.Close()
}

// Source opens stored artifacts by name.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// LoadArtifacts reads and validates the named artifacts from src.
func LoadArtifacts(ctx context.Context, src Source, name string) (*Artifacts, error) {
	if name == "" {
		name = DefaultArtifactName
	}
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", internalerr.ErrModelUnavailable, name, err)
	}
	defer rc.Close()
	return ParseArtifacts(rc)
}

// FileSource reads artifacts from a local directory.
type FileSource struct {
	Dir string
}

func (s FileSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.Dir, name))
}

// MinioConfig locates artifacts in an S3-compatible bucket.
type MinioConfig struct {
	Endpoint     string `yaml:"endpoint"`
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`
	UseSSL       bool   `yaml:"use_ssl"`
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Prefix       string `yaml:"prefix"`
}

// MinioSource reads artifacts from object storage.
type MinioSource struct {
	Client *minio.Client
	Bucket string
	Prefix string
}

// NewMinioSource connects with static credentials read from the configured env vars.
func NewMinioSource(cfg MinioConfig) (*MinioSource, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("minio endpoint cannot be empty")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("minio bucket cannot be empty")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(os.Getenv(cfg.AccessKeyEnv), os.Getenv(cfg.SecretKeyEnv), ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	return &MinioSource{Client: client, Bucket: cfg.Bucket, Prefix: cfg.Prefix}, nil
}

func (s *MinioSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := s.Client.GetObject(ctx, s.Bucket, s.Prefix+name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	// GetObject is lazy; Stat surfaces a missing key here instead of on first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to get object stats: %w", err)
	}
	return obj, nil
}

// FitArtifacts fits a reducer with the given number of components on a
// reference corpus and bundles it with the vectorizer and weighting settings.
func FitArtifacts(ctx context.Context, e embed.Embedder, texts []string, components int, vectorizer *CountVectorizer, weighting CTFIDF) (*Artifacts, error) {
	X, err := e.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	pca, err := FitPCA(X, components)
	if err != nil {
		return nil, err
	}
	if vectorizer == nil {
		vectorizer = NewCountVectorizer()
	}
	vectorizer.Prepare()

	a := &Artifacts{Reducer: pca, Vectorizer: vectorizer, Weighting: &weighting}
	a.Embedding.Name = e.Name()
	_, a.Embedding.Dimension = X.Dims()
	return a, nil
}
