package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sopt-makers/sopt-push-notification/models"
)

// RegistrationResult is the non-fatal outcome of a register or cancel.
type RegistrationResult int

const (
	// ResultRegistered means a token pair was written.
	ResultRegistered RegistrationResult = iota
	// ResultDuplicate means the device was already registered to the
	// same owner and nothing was changed.
	ResultDuplicate
	// ResultCanceled means the token pair was removed.
	ResultCanceled
	// ResultNotFound means there was no pair to cancel.
	ResultNotFound
)

// RegisterInput carries one register or cancel request into the
// orchestrator.
type RegisterInput struct {
	TransactionID string
	Service       models.Service
	Platform      models.Platform
	DeviceToken   string
	UserIDs       []string
}

// RegistrationService drives the per-device registration state machine
// over the token index and the endpoint registrar. Operations for one
// device are strictly sequential: endpoint creation precedes the index
// write, and an index delete precedes any re-creation.
type RegistrationService struct {
	index     *TokenIndex
	endpoints *EndpointService
	audit     *AuditService
}

// NewRegistrationService wires the registration orchestrator.
func NewRegistrationService(index *TokenIndex, endpoints *EndpointService, audit *AuditService) *RegistrationService {
	return &RegistrationService{index: index, endpoints: endpoints, audit: audit}
}

// Register runs the REGISTER transition for a device token. A register
// for a device already owned by the same user is a no-op duplicate; a
// register by a different user evicts the previous owner first.
func (r *RegistrationService) Register(ctx context.Context, in RegisterInput) (RegistrationResult, error) {
	r.recordAudit(ctx, in, models.ActionRegister, models.AuditStart, "")

	result, err := r.register(ctx, in)
	if err != nil {
		r.recordAudit(ctx, in, models.ActionRegister, models.AuditFail, err.Error())
		return result, fmt.Errorf("registerUser error: %w", err)
	}

	r.recordAudit(ctx, in, models.ActionRegister, models.AuditSuccess, "")
	return result, nil
}

func (r *RegistrationService) register(ctx context.Context, in RegisterInput) (RegistrationResult, error) {
	userID := firstUserID(in.UserIDs)

	existing, err := r.index.QueryByDevice(ctx, in.DeviceToken)
	switch {
	case errors.Is(err, ErrTokenNotFound):
		return ResultRegistered, r.registerFresh(ctx, userID, in.DeviceToken, in.Platform)
	case err != nil:
		return ResultRegistered, err
	}

	owner, err := existing.UserID()
	if err != nil {
		return ResultRegistered, errors.Join(ErrCorruptRecord, err)
	}

	effective := userID
	if effective == "" {
		effective = models.UnknownUser
	}

	switch {
	case owner == effective:
		// Same owner re-registering: keep the stored handles untouched.
		return ResultDuplicate, nil

	case owner == models.UnknownUser:
		// The device gains a real owner. The remote endpoint stays
		// valid, so only the index pair is rewritten.
		if _, err := r.index.Delete(ctx, in.DeviceToken, ""); err != nil {
			return ResultRegistered, err
		}
		return ResultRegistered, r.index.Put(ctx, userID, in.DeviceToken, existing.Platform, existing.EndpointArn, existing.SubscriptionArn)

	default:
		// A different user claims the device: tear the previous owner's
		// registration down fully, then register from scratch.
		deleted, err := r.index.Delete(ctx, in.DeviceToken, owner)
		if err != nil {
			return ResultRegistered, err
		}
		r.teardownEndpoint(ctx, deleted)
		return ResultRegistered, r.registerFresh(ctx, userID, in.DeviceToken, in.Platform)
	}
}

func (r *RegistrationService) registerFresh(ctx context.Context, userID, deviceToken string, platform models.Platform) error {
	endpointArn, err := r.endpoints.CreateEndpoint(ctx, deviceToken, platform, userID)
	if err != nil {
		return err
	}
	subscriptionArn, err := r.endpoints.Subscribe(ctx, endpointArn)
	if err != nil {
		return err
	}
	return r.index.Put(ctx, userID, deviceToken, platform, endpointArn, subscriptionArn)
}

// Cancel runs the CANCEL transition: read-and-delete the index pair,
// then best-effort endpoint and subscription teardown from the deleted
// record's handles.
func (r *RegistrationService) Cancel(ctx context.Context, in RegisterInput) (RegistrationResult, error) {
	r.recordAudit(ctx, in, models.ActionCancel, models.AuditStart, "")

	result, err := r.cancel(ctx, in)
	if err != nil {
		r.recordAudit(ctx, in, models.ActionCancel, models.AuditFail, err.Error())
		return result, fmt.Errorf("deleteToken error: %w", err)
	}
	if result == ResultNotFound {
		r.recordAudit(ctx, in, models.ActionCancel, models.AuditFail, ErrTokenNotFound.Error())
		return result, nil
	}

	r.recordAudit(ctx, in, models.ActionCancel, models.AuditSuccess, "")
	return result, nil
}

func (r *RegistrationService) cancel(ctx context.Context, in RegisterInput) (RegistrationResult, error) {
	deleted, err := r.index.Delete(ctx, in.DeviceToken, firstUserID(in.UserIDs))
	if errors.Is(err, ErrTokenNotFound) {
		return ResultNotFound, nil
	}
	if err != nil {
		return ResultCanceled, err
	}
	if deleted.EndpointArn == "" || deleted.SubscriptionArn == "" {
		return ResultCanceled, ErrMissingHandles
	}

	r.teardownEndpoint(ctx, deleted)
	return ResultCanceled, nil
}

// UnregisterFromFeedback handles the push transport's delivery-failure
// notification for a token: record a fail entry for the undeliverable
// message, then run the cancel path for the token's owner.
func (r *RegistrationService) UnregisterFromFeedback(ctx context.Context, deviceToken, messageID string) error {
	existing, err := r.index.QueryByDevice(ctx, deviceToken)
	if errors.Is(err, ErrTokenNotFound) {
		log.Info().Str("deviceToken", deviceToken).Msg("feedback for unregistered token, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleteToken error: %w", err)
	}

	owner, err := existing.UserID()
	if err != nil {
		return fmt.Errorf("deleteToken error: %w", errors.Join(ErrCorruptRecord, err))
	}

	in := RegisterInput{
		TransactionID: uuid.NewString(),
		Service:       models.ServiceApp,
		Platform:      existing.Platform,
		DeviceToken:   deviceToken,
		UserIDs:       []string{owner},
	}
	r.audit.Record(ctx, models.AuditEntry{
		TransactionID:    in.TransactionID,
		Action:           models.ActionSend,
		Status:           models.AuditFail,
		Service:          in.Service,
		Platform:         existing.Platform,
		NotificationType: models.NotificationPush,
		DeviceToken:      deviceToken,
		UserIDs:          []string{owner},
		MessageIDs:       []string{messageID},
	})

	_, err = r.Cancel(ctx, in)
	return err
}

// teardownEndpoint fires both remote teardown calls together and waits
// for them; each is best-effort and logs its own failure.
func (r *RegistrationService) teardownEndpoint(ctx context.Context, rec *models.TokenRecord) {
	runAll(
		func() error { r.endpoints.DeleteEndpoint(ctx, rec.EndpointArn); return nil },
		func() error { r.endpoints.Unsubscribe(ctx, rec.SubscriptionArn); return nil },
	)
}

func (r *RegistrationService) recordAudit(ctx context.Context, in RegisterInput, action models.Action, status models.AuditStatus, errMsg string) {
	r.audit.Record(ctx, models.AuditEntry{
		TransactionID:    in.TransactionID,
		Action:           action,
		Status:           status,
		Service:          in.Service,
		Platform:         in.Platform,
		NotificationType: models.NotificationPush,
		DeviceToken:      in.DeviceToken,
		UserIDs:          in.UserIDs,
		ErrorMessage:     errMsg,
	})
}

func firstUserID(userIDs []string) string {
	if len(userIDs) == 0 {
		return ""
	}
	return userIDs[0]
}
