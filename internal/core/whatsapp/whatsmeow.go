package whatsapp

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"image/png"
	"log"
	"time"

	_ "github.com/lib/pq"
	qrcode "github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
	_ "modernc.org/sqlite"
)

// WhatsmeowProvider drives a single personal-account session over the
// multidevice protocol. The instance argument on sends is ignored: one
// process, one session.
type WhatsmeowProvider struct {
	client   *whatsmeow.Client
	storeURL string
}

func NewWhatsmeowProvider(storeURL string) *WhatsmeowProvider {
	return &WhatsmeowProvider{
		storeURL: storeURL,
	}
}

func (w *WhatsmeowProvider) GetProviderName() string {
	return "Whatsmeow"
}

func (w *WhatsmeowProvider) initStore() (*sqlstore.Container, error) {
	ctx := context.Background()
	dbLog := waLog.Stdout("Database", "ERROR", true)

	if w.storeURL != "" {
		log.Println("🌐 Using PostgreSQL database for WhatsApp store")
		container, err := sqlstore.New(ctx, "postgres", w.storeURL, dbLog)
		if err != nil {
			return nil, fmt.Errorf("failed to init PostgreSQL store: %w", err)
		}
		if err := container.Upgrade(ctx); err != nil {
			return nil, fmt.Errorf("failed to upgrade PostgreSQL schema: %w", err)
		}
		return container, nil
	}

	log.Println("💾 Using local SQLite store (store.db)")
	rawDB, err := sql.Open("sqlite", "file:store.db?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if _, err = rawDB.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		log.Printf("⚠️ Failed to enable foreign_keys pragma: %v", err)
	}

	container := sqlstore.NewWithDB(rawDB, "sqlite", dbLog)
	if err := container.Upgrade(ctx); err != nil {
		return nil, fmt.Errorf("failed to upgrade SQLite schema: %w", err)
	}

	return container, nil
}

func (w *WhatsmeowProvider) Connect() error {
	container, err := w.initStore()
	if err != nil {
		return fmt.Errorf("failed to init store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get device: %w", err)
	}

	clientLog := waLog.Stdout("Client", "INFO", true)
	w.client = whatsmeow.NewClient(deviceStore, clientLog)

	if w.client.Store.ID == nil {
		qrChan, _ := w.client.GetQRChannel(context.Background())
		if err := w.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}

		for evt := range qrChan {
			if evt.Event == "code" {
				fmt.Println("🔗 Scan this QR in WhatsApp:", evt.Code)
				if err := qrcode.WriteFile(evt.Code, qrcode.Medium, 256, "whatsapp-qr.png"); err != nil {
					log.Printf("Failed to generate QR image: %v", err)
				} else {
					fmt.Println("🖼️ QR code saved to whatsapp-qr.png")
				}
			} else if evt.Event == "success" {
				fmt.Println("✅ Login successful!")
				break
			} else if evt.Event == "timeout" {
				return fmt.Errorf("QR code timeout")
			}
		}
	} else {
		if err := w.client.Connect(); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
		fmt.Println("✅ Reconnected to WhatsApp.")
	}

	return nil
}

func (w *WhatsmeowProvider) Disconnect() {
	if w.client != nil {
		w.client.Disconnect()
		log.Println("🔌 Whatsmeow client disconnected")
	}
}

func (w *WhatsmeowProvider) SendText(ctx context.Context, _, phoneNumber, message string) error {
	if w.client == nil {
		return fmt.Errorf("client not initialized")
	}

	jid := types.NewJID(phoneNumber, "s.whatsapp.net")
	msg := &waE2E.Message{
		Conversation: proto.String(message),
	}

	_, err := w.client.SendMessage(ctx, jid, msg)
	return err
}

func (w *WhatsmeowProvider) SendReaction(ctx context.Context, _, phoneNumber, messageID, emoji string) error {
	if w.client == nil {
		return fmt.Errorf("client not initialized")
	}

	jid := types.NewJID(phoneNumber, "s.whatsapp.net")
	msg := &waE2E.Message{
		ReactionMessage: &waE2E.ReactionMessage{
			Key: &waCommon.MessageKey{
				RemoteJID: proto.String(jid.String()),
				FromMe:    proto.Bool(false),
				ID:        proto.String(messageID),
			},
			Text:              proto.String(emoji),
			SenderTimestampMS: proto.Int64(time.Now().UnixMilli()),
		},
	}

	_, err := w.client.SendMessage(ctx, jid, msg)
	return err
}

func (w *WhatsmeowProvider) SendList(ctx context.Context, _, phoneNumber string, list ListPayload) error {
	if w.client == nil {
		return fmt.Errorf("client not initialized")
	}

	sections := make([]*waE2E.ListMessage_Section, 0, len(list.Sections))
	for _, s := range list.Sections {
		rows := make([]*waE2E.ListMessage_Row, 0, len(s.Rows))
		for _, r := range s.Rows {
			rows = append(rows, &waE2E.ListMessage_Row{
				RowID:       proto.String(r.ID),
				Title:       proto.String(r.Title),
				Description: proto.String(r.Description),
			})
		}
		sections = append(sections, &waE2E.ListMessage_Section{
			Title: proto.String(s.Title),
			Rows:  rows,
		})
	}

	jid := types.NewJID(phoneNumber, "s.whatsapp.net")
	msg := &waE2E.Message{
		ListMessage: &waE2E.ListMessage{
			Title:       proto.String(list.Title),
			Description: proto.String(list.Body),
			ButtonText:  proto.String(list.ButtonText),
			ListType:    waE2E.ListMessage_SINGLE_SELECT.Enum(),
			Sections:    sections,
		},
	}

	_, err := w.client.SendMessage(ctx, jid, msg)
	return err
}

// sessionInstance is the identity workspaces register under: the phone
// number of the logged-in account.
func (w *WhatsmeowProvider) sessionInstance() string {
	if w.client != nil && w.client.Store.ID != nil {
		return w.client.Store.ID.User
	}
	return ""
}

// inboundFromEvent normalizes a whatsmeow message event. The instance is
// stamped here so routing can resolve the workspace the session belongs to.
func inboundFromEvent(instance string, msgEvt *events.Message) InboundMessage {
	text := msgEvt.Message.GetConversation()
	if text == "" {
		text = msgEvt.Message.GetExtendedTextMessage().GetText()
	}
	if text == "" {
		// List replies come back as a selection title.
		text = msgEvt.Message.GetListResponseMessage().GetTitle()
	}

	return InboundMessage{
		Instance:  instance,
		Sender:    msgEvt.Info.Sender.User,
		Text:      text,
		MessageID: msgEvt.Info.ID,
		IsFromMe:  msgEvt.Info.IsFromMe,
		IsGroup:   msgEvt.Info.IsGroup,
	}
}

// StartListening converts whatsmeow message events into normalized inbound
// messages. Non-message events are dropped here.
func (w *WhatsmeowProvider) StartListening(handler func(msg InboundMessage)) error {
	if w.client == nil {
		return fmt.Errorf("client not initialized")
	}

	w.client.AddEventHandler(func(evt interface{}) {
		msgEvt, ok := evt.(*events.Message)
		if !ok {
			return
		}
		handler(inboundFromEvent(w.sessionInstance(), msgEvt))
	})
	return nil
}

func (w *WhatsmeowProvider) GenerateQR(sessionID string) ([]byte, error) {
	// Whatsmeow runs one session per process; sessionID is ignored.
	container, err := w.initStore()
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, waLog.Stdout("Client", "INFO", true))
	qrChan, _ := client.GetQRChannel(context.Background())

	go func() {
		_ = client.Connect()
	}()

	for evt := range qrChan {
		if evt.Event == "code" {
			var buf bytes.Buffer
			img, err := qrcode.New(evt.Code, qrcode.Medium)
			if err != nil {
				client.Disconnect()
				return nil, fmt.Errorf("failed to generate QR: %w", err)
			}

			if err := png.Encode(&buf, img.Image(256)); err != nil {
				client.Disconnect()
				return nil, fmt.Errorf("failed to encode QR png: %w", err)
			}

			go func(cli *whatsmeow.Client) {
				time.Sleep(5 * time.Minute)
				cli.Disconnect()
			}(client)

			return buf.Bytes(), nil
		} else if evt.Event == "timeout" || evt.Event == "error" {
			client.Disconnect()
			return nil, fmt.Errorf("QR generation failed: %s", evt.Event)
		}
	}

	return nil, fmt.Errorf("no QR generated")
}

func (w *WhatsmeowProvider) IsConnected() bool {
	return w.client != nil && w.client.IsConnected()
}

func (w *WhatsmeowProvider) StartKeepAlive(ctx context.Context) {
	if w.client == nil {
		return
	}

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	log.Println("🔄 Keep-alive started (ping every 60s)")

	for {
		select {
		case <-ctx.Done():
			log.Println("🛑 Keep-alive stopped")
			return
		case <-ticker.C:
			if w.client != nil && w.client.IsConnected() {
				err := w.client.SendPresence(ctx, types.PresenceAvailable)
				if err != nil {
					log.Printf("⚠️ Keep-alive ping failed: %v", err)
				}
			}
		}
	}
}

// StartTyping shows typing indicator (Whatsmeow implementation)
func (w *WhatsmeowProvider) StartTyping(_, phoneNumber string) error {
	if w.client == nil || !w.client.IsConnected() {
		return fmt.Errorf("whatsmeow client not connected")
	}

	jid, err := types.ParseJID(phoneNumber + "@s.whatsapp.net")
	if err != nil {
		return fmt.Errorf("invalid phone number: %w", err)
	}

	ctx := context.Background()
	return w.client.SendChatPresence(ctx, jid, types.ChatPresenceComposing, types.ChatPresenceMediaText)
}

// StopTyping clears typing indicator (Whatsmeow implementation)
func (w *WhatsmeowProvider) StopTyping(_, phoneNumber string) error {
	if w.client == nil || !w.client.IsConnected() {
		return fmt.Errorf("whatsmeow client not connected")
	}

	jid, err := types.ParseJID(phoneNumber + "@s.whatsapp.net")
	if err != nil {
		return fmt.Errorf("invalid phone number: %w", err)
	}

	ctx := context.Background()
	return w.client.SendChatPresence(ctx, jid, types.ChatPresencePaused, types.ChatPresenceMediaText)
}
