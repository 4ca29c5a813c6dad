package services

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tech-e/apiserver/internal/apperr"
	"github.com/tech-e/apiserver/internal/storage"
	"github.com/tech-e/apiserver/internal/store"
	"github.com/tech-e/apiserver/types"
	"go.uber.org/zap"
)

var (
	ErrPackageNotFound      = apperr.New(apperr.KindNotFound, "Package not found")
	ErrPackageImageNotFound = apperr.New(apperr.KindNotFound, "Package image not found")
	ErrNotAnImage           = apperr.New(apperr.KindInvalidInput, "Uploaded file must be an image.")
	ErrStorageUnavailable   = apperr.New(apperr.KindUnavailable, "Image storage is not configured.")
)

// MaxImageSize bounds package image uploads.
const MaxImageSize = 5 << 20

var packageFieldMessages = map[string]string{
	"name":        "Name is required.",
	"version":     "Version is required.",
	"description": "Description is required.",
	"price":       "Price is required.",
}

// PackageRepository defines persistence operations for packages.
type PackageRepository interface {
	List(ctx context.Context) ([]types.Package, error)
	Get(ctx context.Context, id string) (types.Package, error)
	Create(ctx context.Context, pkg types.Package) (types.Package, error)
	Update(ctx context.Context, pkg types.Package) (types.Package, error)
	Delete(ctx context.Context, id string) error
}

type PackageInput struct {
	Name        string `json:"name" validate:"required"`
	Version     string `json:"version" validate:"required"`
	Description string `json:"description" validate:"required"`
	Price       string `json:"price" validate:"required"`
}

// PackageService encapsulates catalog use-cases.
type PackageService struct {
	repo     PackageRepository
	objects  storage.ObjectStorage
	logger   *zap.Logger
	validate *validator.Validate
}

// NewPackageService builds the service. objects may be nil, in which case
// the image operations report ErrStorageUnavailable.
func NewPackageService(repo PackageRepository, objects storage.ObjectStorage, logger *zap.Logger) *PackageService {
	return &PackageService{repo: repo, objects: objects, logger: logger, validate: newValidator()}
}

func (s *PackageService) List(ctx context.Context) ([]types.Package, error) {
	packages, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if packages == nil {
		packages = []types.Package{}
	}
	return packages, nil
}

func (s *PackageService) Get(ctx context.Context, id string) (types.Package, error) {
	pkg, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Package{}, packageLookupError(err)
	}
	return pkg, nil
}

func (s *PackageService) Create(ctx context.Context, in PackageInput) (types.Package, error) {
	in = PackageInput{
		Name:        strings.TrimSpace(in.Name),
		Version:     strings.TrimSpace(in.Version),
		Description: strings.TrimSpace(in.Description),
		Price:       strings.TrimSpace(in.Price),
	}
	if err := s.validate.Struct(in); err != nil {
		return types.Package{}, apperr.Invalid("Validation failed.", fieldErrors(err, packageFieldMessages, "Invalid value.")...)
	}

	pkg, err := s.repo.Create(ctx, types.Package{
		Name:        in.Name,
		Version:     in.Version,
		Description: in.Description,
		Price:       in.Price,
	})
	if err != nil {
		return types.Package{}, apperr.Internal(err)
	}
	return pkg, nil
}

// Update applies patch to the package. Supplied fields may not be blank.
func (s *PackageService) Update(ctx context.Context, id string, patch types.PackagePatch) (types.Package, error) {
	pkg, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Package{}, packageLookupError(err)
	}
	patch.Apply(&pkg)

	in := PackageInput{
		Name:        strings.TrimSpace(pkg.Name),
		Version:     strings.TrimSpace(pkg.Version),
		Description: strings.TrimSpace(pkg.Description),
		Price:       strings.TrimSpace(pkg.Price),
	}
	if err := s.validate.Struct(in); err != nil {
		return types.Package{}, apperr.Invalid("Validation failed.", fieldErrors(err, packageFieldMessages, "Invalid value.")...)
	}
	pkg.Name, pkg.Version, pkg.Description, pkg.Price = in.Name, in.Version, in.Description, in.Price

	updated, err := s.repo.Update(ctx, pkg)
	if err != nil {
		return types.Package{}, packageLookupError(err)
	}
	return updated, nil
}

// Delete removes the package and, best effort, its image.
func (s *PackageService) Delete(ctx context.Context, id string) error {
	pkg, err := s.repo.Get(ctx, id)
	if err != nil {
		return packageLookupError(err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return packageLookupError(err)
	}
	if pkg.ImageKey != "" && s.objects != nil {
		if err := s.objects.Delete(ctx, pkg.ImageKey); err != nil {
			s.logger.Warn("Failed to delete package image", zap.String("package_id", id), zap.String("key", pkg.ImageKey), zap.Error(err))
		}
	}
	return nil
}

// UploadImage stores r as the package image, replacing any previous one.
func (s *PackageService) UploadImage(ctx context.Context, id, filename, contentType string, size int64, r io.Reader) (types.Package, error) {
	if s.objects == nil {
		return types.Package{}, ErrStorageUnavailable
	}
	if !strings.HasPrefix(contentType, "image/") {
		return types.Package{}, ErrNotAnImage
	}
	pkg, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Package{}, packageLookupError(err)
	}

	key := storage.PackageImageKey(pkg.ID, filename)
	if err := s.objects.Put(ctx, key, r, size, contentType); err != nil {
		return types.Package{}, apperr.Internal(err)
	}
	if pkg.ImageKey != "" && pkg.ImageKey != key {
		if err := s.objects.Delete(ctx, pkg.ImageKey); err != nil {
			s.logger.Warn("Failed to delete replaced package image", zap.String("key", pkg.ImageKey), zap.Error(err))
		}
	}

	pkg.ImageKey = key
	updated, err := s.repo.Update(ctx, pkg)
	if err != nil {
		return types.Package{}, packageLookupError(err)
	}
	return updated, nil
}

// Image opens the package image. The caller must close the body.
func (s *PackageService) Image(ctx context.Context, id string) (storage.Object, error) {
	if s.objects == nil {
		return storage.Object{}, ErrStorageUnavailable
	}
	pkg, err := s.repo.Get(ctx, id)
	if err != nil {
		return storage.Object{}, packageLookupError(err)
	}
	if pkg.ImageKey == "" {
		return storage.Object{}, ErrPackageImageNotFound
	}
	obj, err := s.objects.Get(ctx, pkg.ImageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return storage.Object{}, ErrPackageImageNotFound
		}
		return storage.Object{}, apperr.Internal(err)
	}
	return obj, nil
}

func packageLookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrPackageNotFound
	}
	return apperr.Internal(err)
}
