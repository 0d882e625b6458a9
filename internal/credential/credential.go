package credential

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

// DefaultQRSize is the rendered QR edge length in pixels. 300px scans
// reliably from both email and mobile wallets.
const DefaultQRSize = 300

// Claims is the payload embedded in every ticket credential. Check-in can
// read provenance without a database round trip, but ticket state is always
// re-validated against the database before admission.
type Claims struct {
	TicketID string `json:"ticket_id"`
	UserID   string `json:"user_id"`
	EventID  string `json:"event_id"`
	Nonce    string `json:"nonce"`
}

// Credential is the scannable artifact attached to one issued ticket.
type Credential struct {
	// Payload is the canonical JSON claims string stored with the ticket.
	Payload string
	// QRCode is the payload rendered as a base64 PNG data URI, ready to
	// embed in email HTML.
	QRCode string
}

// Issuer produces ticket credentials. It holds no persisted state; every
// credential is a pure function of ticket identity plus a fresh nonce, so no
// two issued credentials can collide even across events and users.
type Issuer struct {
	qrSize int
}

func NewIssuer(qrSize int) *Issuer {
	if qrSize <= 0 {
		qrSize = DefaultQRSize
	}
	return &Issuer{qrSize: qrSize}
}

// Issue creates the credential for a single ticket.
func (i *Issuer) Issue(ticketID, userID, eventID string) (Credential, error) {
	claims := Claims{
		TicketID: ticketID,
		UserID:   userID,
		EventID:  eventID,
		Nonce:    uuid.New().String(),
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to marshal credential claims: %w", err)
	}

	png, err := qrcode.Encode(string(payload), qrcode.Medium, i.qrSize)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to render credential QR: %w", err)
	}

	return Credential{
		Payload: string(payload),
		QRCode:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}, nil
}

// Decode parses a credential payload back into its claims.
func Decode(payload string) (Claims, error) {
	var claims Claims
	if err := json.Unmarshal([]byte(payload), &claims); err != nil {
		return Claims{}, fmt.Errorf("malformed credential payload: %w", err)
	}
	if claims.TicketID == "" || claims.EventID == "" {
		return Claims{}, fmt.Errorf("credential payload missing identity fields")
	}
	return claims, nil
}
