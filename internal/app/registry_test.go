package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shonubijerry/blacktax/internal/domain"
	"github.com/shonubijerry/blacktax/internal/store"
)

type registryRepoStub struct {
	store.Repository

	created    *domain.Recipient
	createErr  error
	existing   *domain.Recipient
	updated    *domain.Recipient
	updateErr  error
	deactivate uuid.UUID
}

func (s *registryRepoStub) CreateRecipient(ctx context.Context, recipient *domain.Recipient) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = recipient
	return nil
}

func (s *registryRepoStub) FindRecipientByID(ctx context.Context, recipientID uuid.UUID) (*domain.Recipient, error) {
	if s.existing == nil || s.existing.ID != recipientID {
		return nil, store.ErrRecipientNotFound
	}
	copied := *s.existing
	return &copied, nil
}

func (s *registryRepoStub) UpdateRecipient(ctx context.Context, recipient *domain.Recipient) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated = recipient
	return nil
}

func (s *registryRepoStub) DeactivateRecipient(ctx context.Context, recipientID uuid.UUID) error {
	s.deactivate = recipientID
	return nil
}

func TestRegisterRecipient_RequiresCoreFields(t *testing.T) {
	service := NewService(&registryRepoStub{}, &providerStub{}, &publisherStub{})

	_, err := service.RegisterRecipient(context.Background(), domain.RecipientCreateRequest{
		Name:  "Ada",
		Email: "ada@example.com",
	})
	if !errors.Is(err, ErrMissingRecipientFields) {
		t.Fatalf("expected ErrMissingRecipientFields, got %v", err)
	}
}

func TestRegisterRecipient_NormalizesEmailAndStores(t *testing.T) {
	repo := &registryRepoStub{}
	service := NewService(repo, &providerStub{}, &publisherStub{})

	recipient, err := service.RegisterRecipient(context.Background(), domain.RecipientCreateRequest{
		Name:          "  Ada Obi ",
		Email:         " Ada@Example.COM ",
		AccountNumber: "0123456789",
		BankCode:      "058",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recipient.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", recipient.Email)
	}
	if recipient.Name != "Ada Obi" {
		t.Fatalf("expected trimmed name, got %q", recipient.Name)
	}
	if repo.created == nil {
		t.Fatal("expected recipient to be persisted")
	}
	if recipient.ProviderRecipientCode != nil {
		t.Fatal("expected no provider handle at registration time")
	}
}

func TestRegisterRecipient_PropagatesDuplicateEmail(t *testing.T) {
	repo := &registryRepoStub{createErr: store.ErrDuplicateEmail}
	service := NewService(repo, &providerStub{}, &publisherStub{})

	_, err := service.RegisterRecipient(context.Background(), domain.RecipientCreateRequest{
		Name:          "Ada",
		Email:         "ada@example.com",
		AccountNumber: "0123456789",
		BankCode:      "058",
	})
	if !errors.Is(err, store.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestUpdateRecipient_BankChangeInvalidatesProviderHandle(t *testing.T) {
	code := "RCP_old"
	existing := activeRecipient("Ada", "ada@example.com")
	existing.ProviderRecipientCode = &code
	repo := &registryRepoStub{existing: &existing}
	service := NewService(repo, &providerStub{}, &publisherStub{})

	newAccount := "9876543210"
	updated, err := service.UpdateRecipient(context.Background(), existing.ID, domain.RecipientUpdateRequest{
		AccountNumber: &newAccount,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ProviderRecipientCode != nil {
		t.Fatal("expected provider handle to be cleared after bank detail change")
	}
	if repo.updated == nil || repo.updated.AccountNumber != newAccount {
		t.Fatal("expected updated account number to be persisted")
	}
}

func TestUpdateRecipient_NameChangeKeepsProviderHandle(t *testing.T) {
	code := "RCP_old"
	existing := activeRecipient("Ada", "ada@example.com")
	existing.ProviderRecipientCode = &code
	repo := &registryRepoStub{existing: &existing}
	service := NewService(repo, &providerStub{}, &publisherStub{})

	newName := "Ada Obi"
	updated, err := service.UpdateRecipient(context.Background(), existing.ID, domain.RecipientUpdateRequest{
		Name: &newName,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ProviderRecipientCode == nil || *updated.ProviderRecipientCode != code {
		t.Fatal("expected provider handle to survive a name-only change")
	}
}

func TestUpdateRecipient_SameBankDetailsKeepHandle(t *testing.T) {
	code := "RCP_old"
	existing := activeRecipient("Ada", "ada@example.com")
	existing.ProviderRecipientCode = &code
	repo := &registryRepoStub{existing: &existing}
	service := NewService(repo, &providerStub{}, &publisherStub{})

	sameAccount := existing.AccountNumber
	updated, err := service.UpdateRecipient(context.Background(), existing.ID, domain.RecipientUpdateRequest{
		AccountNumber: &sameAccount,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ProviderRecipientCode == nil {
		t.Fatal("expected handle to survive a no-op bank detail update")
	}
}

func TestDeactivateRecipient_DelegatesToRepository(t *testing.T) {
	repo := &registryRepoStub{}
	service := NewService(repo, &providerStub{}, &publisherStub{})

	id := uuid.New()
	if err := service.DeactivateRecipient(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.deactivate != id {
		t.Fatal("expected deactivation to reach the repository")
	}
}
