package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"tomobs/internal/forms"
	"tomobs/internal/metrics"
	"tomobs/internal/models"
	"tomobs/internal/repository"
	"tomobs/internal/storage"
	"tomobs/internal/thumbnail"

	"gorm.io/datatypes"
)

const DataProductPageSize = 25

// UploadInput describes one data product file being added.
type UploadInput struct {
	TargetID            uint
	ObservationRecordID *uint
	ProductID           string
	Tag                 string
	ExtraData           datatypes.JSON
	Filename            string
	Size                int64
	Content             io.Reader
}

type DataProductPage struct {
	Page
	DataProducts []models.DataProduct `json:"data_products"`
}

type DataProductService interface {
	Upload(ctx context.Context, in UploadInput) (*models.DataProduct, error)
	List(ctx context.Context, filter repository.DataProductFilter, page int) (*DataProductPage, error)
	Get(ctx context.Context, id uint) (*models.DataProduct, error)
	ListByTarget(ctx context.Context, targetID uint) ([]models.DataProduct, error)
	Delete(ctx context.Context, id uint) error
	Thumbnail(ctx context.Context, id uint) (string, error)

	CreateGroup(ctx context.Context, form *forms.GroupForm) (*models.DataProductGroup, error)
	ListGroups(ctx context.Context) ([]models.DataProductGroup, error)
	GetGroup(ctx context.Context, id uint) (*models.DataProductGroup, error)
	DeleteGroup(ctx context.Context, id uint) error
	AddProductsToGroup(ctx context.Context, form *forms.AddProductToGroupForm) (*models.DataProductGroup, error)
}

type dataProductService struct {
	repo         repository.DataProductRepository
	groupRepo    repository.GroupRepository
	targetRepo   repository.TargetRepository
	obsRepo      repository.ObservationRepository
	cacheRepo    repository.CacheRepository
	store        storage.Store
	renderer     thumbnail.Renderer
	thumbnailTTL time.Duration
}

type DataProductConfig struct {
	Thumbnail    thumbnail.Renderer
	ThumbnailTTL time.Duration
}

// NewDataProductService wires the data product repositories with file
// storage. cacheRepo may be nil, which disables thumbnail caching.
func NewDataProductService(
	repo repository.DataProductRepository,
	groupRepo repository.GroupRepository,
	targetRepo repository.TargetRepository,
	obsRepo repository.ObservationRepository,
	cacheRepo repository.CacheRepository,
	store storage.Store,
	config DataProductConfig,
) DataProductService {
	return &dataProductService{
		repo:         repo,
		groupRepo:    groupRepo,
		targetRepo:   targetRepo,
		obsRepo:      obsRepo,
		cacheRepo:    cacheRepo,
		store:        store,
		renderer:     config.Thumbnail,
		thumbnailTTL: config.ThumbnailTTL,
	}
}

// Upload stores the file under the product's path, or a suffixed variant of
// it when that path is taken, and creates the product.
// The stored file is removed again when the product cannot be created.
func (s *dataProductService) Upload(ctx context.Context, in UploadInput) (*models.DataProduct, error) {
	ve := forms.NewValidationError()
	if in.TargetID == 0 {
		ve.Add("target_id", "This field is required.")
	}
	if strings.TrimSpace(in.Filename) == "" || in.Content == nil {
		ve.Add("file", "This field is required.")
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}

	target, err := s.targetRepo.GetByID(ctx, in.TargetID)
	if err != nil {
		return nil, notFound(err, ErrTargetNotFound)
	}

	facilityName := ""
	if in.ObservationRecordID != nil {
		record, err := s.obsRepo.GetByID(ctx, *in.ObservationRecordID)
		if err != nil {
			return nil, notFound(err, ErrRecordNotFound)
		}
		if record.TargetID != target.ID {
			ve.Add("observation_record", "Observation record belongs to a different target.")
			return nil, ve
		}
		facilityName = record.Facility
	}

	// a name already taken gets a random suffix, so every product owns its file
	key, err := storage.AvailableKey(ctx, s.store, storage.DataProductPath(target.Identifier, facilityName, in.Filename))
	if err != nil {
		return nil, fmt.Errorf("failed to store data product: %w", err)
	}
	if err := s.store.Save(ctx, key, in.Content, in.Size); err != nil {
		return nil, fmt.Errorf("failed to store data product: %w", err)
	}

	product := &models.DataProduct{
		TargetID:            target.ID,
		ObservationRecordID: in.ObservationRecordID,
		Data:                key,
		ExtraData:           in.ExtraData,
		Tag:                 in.Tag,
	}
	if in.ProductID != "" {
		productID := in.ProductID
		product.ProductID = &productID
	}

	if err := s.repo.Create(ctx, product); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			log.Printf("Failed to remove orphaned file %s: %v", key, delErr)
		}
		return nil, fmt.Errorf("failed to create data product: %w", err)
	}

	product.Target = target
	return product, nil
}

func (s *dataProductService) List(ctx context.Context, filter repository.DataProductFilter, page int) (*DataProductPage, error) {
	page = normalizePage(page)
	products, count, err := s.repo.List(ctx, filter, (page-1)*DataProductPageSize, DataProductPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list data products: %w", err)
	}
	if products == nil {
		products = []models.DataProduct{}
	}

	return &DataProductPage{
		Page:         newPage(page, DataProductPageSize, count),
		DataProducts: products,
	}, nil
}

func (s *dataProductService) Get(ctx context.Context, id uint) (*models.DataProduct, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrRecordNotFound)
	}
	return product, nil
}

func (s *dataProductService) ListByTarget(ctx context.Context, targetID uint) ([]models.DataProduct, error) {
	return s.repo.ListByTarget(ctx, targetID)
}

// Delete removes the product, its group memberships and its file.
func (s *dataProductService) Delete(ctx context.Context, id uint) error {
	product, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete data product: %w", err)
	}

	if err := s.store.Delete(ctx, product.Data); err != nil && !errors.Is(err, storage.ErrNotExist) {
		log.Printf("Failed to remove file %s of data product %d: %v", product.Data, id, err)
	}
	if s.cacheRepo != nil {
		if err := s.cacheRepo.Delete(ctx, thumbnailKey(product)); err != nil {
			log.Printf("Failed to evict thumbnail of data product %d: %v", id, err)
		}
	}
	return nil
}

// Thumbnail returns the base64 PNG of the product's FITS image. Rendered
// thumbnails are cached until the product is modified.
func (s *dataProductService) Thumbnail(ctx context.Context, id uint) (string, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}

	key := thumbnailKey(product)
	if s.cacheRepo != nil {
		if cached, err := s.cacheRepo.Get(ctx, key); err == nil && cached != "" {
			return cached, nil
		} else if err != nil {
			log.Printf("Failed to read thumbnail cache: %v", err)
		}
	}

	file, err := s.store.Open(ctx, product.Data)
	if err != nil {
		return "", err
	}
	defer file.Close()

	start := time.Now()
	encoded, err := s.renderer.Render(file)
	if err != nil {
		metrics.ObserveThumbnail(metrics.ResultError, time.Since(start))
		return "", fmt.Errorf("failed to render thumbnail of data product %d: %w", id, err)
	}
	metrics.ObserveThumbnail(metrics.ResultSuccess, time.Since(start))

	if s.cacheRepo != nil {
		if err := s.cacheRepo.Set(ctx, key, encoded, s.thumbnailTTL); err != nil {
			log.Printf("Failed to cache thumbnail: %v", err)
		}
	}
	return encoded, nil
}

func thumbnailKey(product *models.DataProduct) string {
	return fmt.Sprintf("thumbnail:%d:%d", product.ID, product.UpdatedAt.UnixNano())
}

func (s *dataProductService) CreateGroup(ctx context.Context, form *forms.GroupForm) (*models.DataProductGroup, error) {
	name := strings.TrimSpace(form.Name)
	if name == "" {
		ve := forms.NewValidationError()
		ve.Add("name", "This field is required.")
		return nil, ve
	}

	group := &models.DataProductGroup{Name: name}
	if err := s.groupRepo.Create(ctx, group); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	return group, nil
}

func (s *dataProductService) ListGroups(ctx context.Context) ([]models.DataProductGroup, error) {
	groups, err := s.groupRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []models.DataProductGroup{}
	}
	return groups, nil
}

func (s *dataProductService) GetGroup(ctx context.Context, id uint) (*models.DataProductGroup, error) {
	group, err := s.groupRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrRecordNotFound)
	}
	return group, nil
}

func (s *dataProductService) DeleteGroup(ctx context.Context, id uint) error {
	if err := s.groupRepo.Delete(ctx, id); err != nil {
		return notFound(err, ErrRecordNotFound)
	}
	return nil
}

// AddProductsToGroup validates the form against stored products and groups,
// then adds the memberships. Products already in the group stay there once.
func (s *dataProductService) AddProductsToGroup(ctx context.Context, form *forms.AddProductToGroupForm) (*models.DataProductGroup, error) {
	if err := form.Validate(ctx, s.repo, s.groupRepo); err != nil {
		return nil, err
	}
	if err := s.groupRepo.AddProducts(ctx, form.Group, form.Products); err != nil {
		return nil, fmt.Errorf("failed to add products to group: %w", err)
	}
	return s.GetGroup(ctx, form.Group)
}
