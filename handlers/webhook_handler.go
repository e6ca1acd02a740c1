package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"jerkyClubAPI/internal/activity"
	"jerkyClubAPI/internal/user"
	"jerkyClubAPI/services"
)

type WebhookHandler struct {
	userService     *services.UserService
	activityService *services.ActivityService
}

func NewWebhookHandler(userService *services.UserService, activityService *services.ActivityService) *WebhookHandler {
	return &WebhookHandler{
		userService:     userService,
		activityService: activityService,
	}
}

type clerkWebhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type clerkUserData struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	ImageURL       string `json:"image_url"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Error reading webhook body: %v", err)
		http.Error(w, "Error reading body", http.StatusBadRequest)
		return
	}

	if !verifySvixSignature(r, body) {
		log.Println("Invalid webhook signature")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event clerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		http.Error(w, "Error parsing webhook", http.StatusBadRequest)
		return
	}

	log.Printf("Received webhook event: %s", event.Type)

	ctx := r.Context()
	switch event.Type {
	case "user.created", "user.updated":
		if err := h.handleUserUpserted(ctx, event.Data); err != nil {
			log.Printf("Error handling %s: %v", event.Type, err)
			http.Error(w, "Error processing webhook", http.StatusInternalServerError)
			return
		}

	case "user.deleted":
		if err := h.handleUserDeleted(ctx, event.Data); err != nil {
			log.Printf("Error handling user.deleted: %v", err)
			http.Error(w, "Error processing webhook", http.StatusInternalServerError)
			return
		}

	default:
		log.Printf("Unhandled webhook event type: %s", event.Type)
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"success": true}`))
}

func (h *WebhookHandler) handleUserUpserted(ctx context.Context, data json.RawMessage) error {
	var userData clerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	email := ""
	if len(userData.EmailAddresses) > 0 {
		email = userData.EmailAddresses[0].EmailAddress
	}

	handle := userData.Username
	if handle == "" {
		handle = userData.FirstName + userData.LastName
	}

	createReq := &user.CreateUserRequest{
		ClerkID:   userData.ID,
		Email:     email,
		Handle:    handle,
		FirstName: userData.FirstName,
		LastName:  userData.LastName,
		AvatarURL: userData.ImageURL,
	}

	u, err := h.userService.CreateUser(ctx, createReq)
	if err != nil {
		return fmt.Errorf("failed to upsert user in database: %w", err)
	}

	log.Printf("Successfully synced user: %s (Clerk ID: %s)", u.Email, u.ClerkID)
	return nil
}

func (h *WebhookHandler) handleUserDeleted(ctx context.Context, data json.RawMessage) error {
	var userData struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	if err := h.userService.DeactivateByClerkID(ctx, userData.ID); err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	log.Printf("Successfully deactivated user: Clerk ID: %s", userData.ID)
	return nil
}

func verifySvixSignature(r *http.Request, body []byte) bool {
	webhookSecret := os.Getenv("CLERK_WEBHOOK_SECRET")
	if webhookSecret == "" {
		log.Println("CLERK_WEBHOOK_SECRET not set, skipping signature verification")
		return true
	}

	svixID := r.Header.Get("svix-id")
	svixTimestamp := r.Header.Get("svix-timestamp")
	svixSignature := r.Header.Get("svix-signature")

	if svixID == "" || svixTimestamp == "" || svixSignature == "" {
		log.Println("Missing webhook signature headers")
		return false
	}

	signedContent := fmt.Sprintf("%s.%s.%s", svixID, svixTimestamp, string(body))

	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(signedContent))
	expectedSignature := hex.EncodeToString(mac.Sum(nil))

	providedSignature := ""
	if len(svixSignature) > 3 && svixSignature[:3] == "v1," {
		providedSignature = svixSignature[3:]
	}

	return hmac.Equal([]byte(expectedSignature), []byte(providedSignature))
}

type orderWebhookPayload struct {
	UserID string `json:"user_id"`
	Items  []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

// HandleOrderWebhook records one purchase event per order line. The shop
// backend signs the raw body with a shared secret.
func (h *WebhookHandler) HandleOrderWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Error reading order webhook body: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !verifyOrderSignature(r, body) {
		log.Println("Invalid order webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload orderWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("Error parsing order webhook: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		log.Printf("Order webhook with bad user id %q: %v", payload.UserID, err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	for _, item := range payload.Items {
		event := activity.Event{
			UserID: userID,
			Type:   activity.TypePurchase,
			Payload: map[string]any{
				"productId": item.ProductID,
				"quantity":  item.Quantity,
			},
			CreatedAt: time.Now(),
		}
		if err := h.activityService.Track(ctx, event); err != nil {
			log.Printf("Error tracking purchase for user %s: %v", userID, err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	log.Printf("Order webhook: recorded %d purchases for user %s", len(payload.Items), userID)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"success": true}`))
}

func verifyOrderSignature(r *http.Request, body []byte) bool {
	secret := os.Getenv("ORDER_WEBHOOK_SECRET")
	if secret == "" {
		log.Println("ORDER_WEBHOOK_SECRET not set, skipping signature verification")
		return true
	}

	provided := r.Header.Get("X-Webhook-Signature")
	if provided == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(provided))
}
