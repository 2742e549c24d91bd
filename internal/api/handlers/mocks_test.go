package handlers_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ksw5434/realestate/internal/models"
	"github.com/ksw5434/realestate/internal/services"
)

// --- Mocks ---

// MockAccountService
type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) SignUp(ctx context.Context, input services.SignUpInput) (*services.Session, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Session), args.Error(1)
}

func (m *MockAccountService) SignIn(ctx context.Context, email, password string) (*services.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Session), args.Error(1)
}

// MockAccessService
type MockAccessService struct {
	mock.Mock
}

func (m *MockAccessService) Capability(ctx context.Context, caller models.Caller) (models.Capability, error) {
	args := m.Called(ctx, caller)
	return args.Get(0).(models.Capability), args.Error(1)
}

func (m *MockAccessService) RequireAdmin(ctx context.Context, caller models.Caller) (*models.Profile, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

// MockProfileService
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) GetOrCreate(ctx context.Context, caller models.Caller) (*models.Profile, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileService) UpdateOwnProfile(ctx context.Context, caller models.Caller, update services.ProfileUpdate) (*models.Profile, error) {
	args := m.Called(ctx, caller, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileService) SetProfileImage(ctx context.Context, caller models.Caller, url string) (*models.Profile, error) {
	args := m.Called(ctx, caller, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

// MockListingService
type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) CreateListing(ctx context.Context, caller models.Caller, form services.ListingForm) (*services.MutationResult, error) {
	args := m.Called(ctx, caller, form)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.MutationResult), args.Error(1)
}

func (m *MockListingService) UpdateListing(ctx context.Context, caller models.Caller, id string, form services.ListingForm) (*services.MutationResult, error) {
	args := m.Called(ctx, caller, id, form)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.MutationResult), args.Error(1)
}

func (m *MockListingService) DeleteListing(ctx context.Context, caller models.Caller, id string) error {
	args := m.Called(ctx, caller, id)
	return args.Error(0)
}

// MockListingQueryService
type MockListingQueryService struct {
	mock.Mock
}

func (m *MockListingQueryService) GetListing(ctx context.Context, id string) (*models.ListingDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ListingDetail), args.Error(1)
}

func (m *MockListingQueryService) ListListings(ctx context.Context, view string) ([]models.ListingSummary, error) {
	args := m.Called(ctx, view)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ListingSummary), args.Error(1)
}

// MockAssetService
type MockAssetService struct {
	mock.Mock
}

func (m *MockAssetService) Upload(ctx context.Context, caller models.Caller, ns services.AssetNamespace, file services.UploadFile) (*services.UploadResult, error) {
	args := m.Called(ctx, caller, ns, file.FileName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.UploadResult), args.Error(1)
}

func (m *MockAssetService) UploadBatch(ctx context.Context, caller models.Caller, ns services.AssetNamespace, files []services.UploadFile) ([]services.UploadResult, error) {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.FileName
	}
	args := m.Called(ctx, caller, ns, names)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]services.UploadResult), args.Error(1)
}
