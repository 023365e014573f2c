package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrxmium/expense-bot/internal/application/port"
	"github.com/chrxmium/expense-bot/internal/domain/entity"
	"github.com/chrxmium/expense-bot/internal/domain/session"
)

// In-memory port implementations for driving the engine in tests.

type memSessions struct {
	mu    sync.Mutex
	items map[int64]*session.Session
}

func newMemSessions() *memSessions {
	return &memSessions{items: make(map[int64]*session.Session)}
}

func (m *memSessions) Get(ctx context.Context, chatID int64) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.items[chatID]
	if !ok {
		return nil, nil
	}
	copied := *sess
	return &copied, nil
}

func (m *memSessions) Save(ctx context.Context, sess *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *sess
	m.items[sess.ChatID] = &copied
	return nil
}

func (m *memSessions) Delete(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, chatID)
	return nil
}

type memUsers struct {
	mu         sync.Mutex
	byTelegram map[int64]*entity.User
	currencies map[string]string
}

func newMemUsers() *memUsers {
	return &memUsers{
		byTelegram: make(map[int64]*entity.User),
		currencies: make(map[string]string),
	}
}

func (m *memUsers) GetOrCreate(ctx context.Context, telegramID int64) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.byTelegram[telegramID]; ok {
		return user, nil
	}
	user := &entity.User{
		ID:         fmt.Sprintf("user-%d", telegramID),
		TelegramID: telegramID,
	}
	m.byTelegram[telegramID] = user
	return user, nil
}

func (m *memUsers) SetPreferredCurrency(ctx context.Context, userID, currency string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currencies[userID] = currency
	return nil
}

func (m *memUsers) ListTelegramIDs(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.byTelegram))
	for id := range m.byTelegram {
		ids = append(ids, id)
	}
	return ids, nil
}

type memExpenses struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*entity.Expense
}

func newMemExpenses() *memExpenses {
	return &memExpenses{nextID: 1, items: make(map[int64]*entity.Expense)}
}

func (m *memExpenses) Insert(ctx context.Context, expense *entity.Expense) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	copied := *expense
	copied.ID = id
	m.items[id] = &copied
	return id, nil
}

func (m *memExpenses) Update(ctx context.Context, expense *entity.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.items[expense.ID]
	if !ok || existing.UserID != expense.UserID {
		return fmt.Errorf("expense %d not found for user", expense.ID)
	}
	copied := *expense
	m.items[expense.ID] = &copied
	return nil
}

func (m *memExpenses) GetByID(ctx context.Context, id int64, userID string) (*entity.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expense, ok := m.items[id]
	if !ok || expense.UserID != userID {
		return nil, nil
	}
	copied := *expense
	return &copied, nil
}

func (m *memExpenses) Delete(ctx context.Context, id int64, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expense, ok := m.items[id]
	if !ok || expense.UserID != userID {
		return false, nil
	}
	delete(m.items, id)
	return true, nil
}

func (m *memExpenses) DeleteAll(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for id, expense := range m.items {
		if expense.UserID == userID {
			delete(m.items, id)
			count++
		}
	}
	return count, nil
}

func (m *memExpenses) FindByFields(ctx context.Context, userID string, draft *entity.ExpenseDraft) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, e := range m.items {
		if e.UserID == userID &&
			e.Currency == draft.Currency &&
			e.Amount.Equal(draft.Amount) &&
			e.Category == draft.Category &&
			e.Description == draft.Description &&
			e.Date.Equal(draft.Date) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memExpenses) ListByUser(ctx context.Context, userID string) ([]*entity.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expenses []*entity.Expense
	for _, e := range m.items {
		if e.UserID == userID {
			copied := *e
			expenses = append(expenses, &copied)
		}
	}
	return expenses, nil
}

func (m *memExpenses) ListCategories(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var categories []string
	for _, e := range m.items {
		if e.UserID == userID && !seen[e.Category] {
			seen[e.Category] = true
			categories = append(categories, e.Category)
		}
	}
	return categories, nil
}

func (m *memExpenses) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type memWhitelist struct {
	mu    sync.Mutex
	users map[string]bool
}

func newMemWhitelist(usernames ...string) *memWhitelist {
	m := &memWhitelist{users: make(map[string]bool)}
	for _, u := range usernames {
		m.users[u] = true
	}
	return m
}

func (m *memWhitelist) IsWhitelisted(ctx context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[username], nil
}

func (m *memWhitelist) Add(ctx context.Context, username, notes string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users[username] {
		return false, nil
	}
	m.users[username] = true
	return true, nil
}

func (m *memWhitelist) Remove(ctx context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.users[username] {
		return false, nil
	}
	delete(m.users, username)
	return true, nil
}

func (m *memWhitelist) List(ctx context.Context) ([]*entity.WhitelistEntry, error) {
	return nil, nil
}

// fakeExtractor returns canned drafts or errors.
type fakeExtractor struct {
	draft       *entity.ExpenseDraft
	refined     *entity.ExpenseDraft
	err         error
	refineCalls int
}

func (f *fakeExtractor) ExtractText(ctx context.Context, text, preferredCurrency string) (*entity.ExpenseDraft, error) {
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.draft
	return &copied, nil
}

func (f *fakeExtractor) ExtractImage(ctx context.Context, imagePath, preferredCurrency string) (*entity.ExpenseDraft, error) {
	return f.ExtractText(ctx, "", preferredCurrency)
}

func (f *fakeExtractor) Refine(ctx context.Context, previous *entity.ExpenseDraft, feedback string) (*entity.ExpenseDraft, error) {
	f.refineCalls++
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.refined
	return &copied, nil
}

// sentMsg is one outbound message captured by the fake messenger.
type sentMsg struct {
	Text    string
	Buttons [][]port.Button
	Edited  bool
}

type fakeMessenger struct {
	mu       sync.Mutex
	nextID   int
	sent     []sentMsg
	document string
	caption  string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{nextID: 1}
}

func (f *fakeMessenger) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.sent = append(f.sent, sentMsg{Text: text})
	return id, nil
}

func (f *fakeMessenger) SendMenu(ctx context.Context, chatID int64, text string, buttons [][]port.Button) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.sent = append(f.sent, sentMsg{Text: text, Buttons: buttons})
	return id, nil
}

func (f *fakeMessenger) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMsg{Text: text, Edited: true})
	return nil
}

func (f *fakeMessenger) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return nil
}

func (f *fakeMessenger) SendDocument(ctx context.Context, chatID int64, filePath, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.document = filePath
	f.caption = caption
	return nil
}

func (f *fakeMessenger) AnswerCallback(ctx context.Context, callbackID string) error {
	return nil
}

func (f *fakeMessenger) DownloadFile(ctx context.Context, fileID string) (string, error) {
	return "", fmt.Errorf("downloads not supported in tests")
}

func (f *fakeMessenger) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].Text
}

func (f *fakeMessenger) allTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	texts := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		texts = append(texts, m.Text)
	}
	return texts
}

type fakeExporter struct {
	path string
	err  error
}

func (f *fakeExporter) Export(ctx context.Context, userID, label string) (string, error) {
	return f.path, f.err
}
