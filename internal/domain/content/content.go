package content

// StudioInfo is the studio card used in prompts and the assistant persona.
type StudioInfo struct {
	Name     string
	Address  string
	Metro    string
	Schedule string
	Phone    string
	Telegram string
}

// PriceItem is one bookable offering with its fixed price in rubles.
type PriceItem struct {
	Name  string
	Price float64
}

// PriceCategory groups price items for display.
type PriceCategory struct {
	Name  string
	Items []PriceItem
}

// TrainerProfile is the static description shown on staff buttons and fed
// to the trainer-match recommendation.
type TrainerProfile struct {
	BestFor    string
	Experience string
}

// FAQItem is one question/answer pair.
type FAQItem struct {
	Question string
	Answer   string
}

var Studio = StudioInfo{
	Name:     "Pilates Guru",
	Address:  "г. Люберцы, Октябрьский проспект, 112",
	Metro:    "Жулебино",
	Schedule: "ежедневно 08:00–22:00",
	Phone:    "+7 (495) 150-33-21",
	Telegram: "@pilates_guru",
}

// Prices is the static price list. It doubles as the pseudo-service
// fallback when the scheduling API returns no services.
var Prices = []PriceCategory{
	{
		Name: "Персональные",
		Items: []PriceItem{
			{Name: "Стартовая персональная (новичок)", Price: 2400},
			{Name: "Персональная разовая", Price: 4000},
			{Name: "Абонемент 8 персональных", Price: 28800},
		},
	},
	{
		Name: "Групповые",
		Items: []PriceItem{
			{Name: "Групповая разовая", Price: 1800},
			{Name: "Абонемент 8 групповых", Price: 13600},
		},
	},
	{
		Name: "Сплит",
		Items: []PriceItem{
			{Name: "Сплит разовая (2 чел)", Price: 5500},
		},
	},
}

// Trainers is the roster used as the pseudo-staff fallback, in display order.
var Trainers = []string{"Тамара", "Дарья", "Марина", "Мария"}

var TrainerProfiles = map[string]TrainerProfile{
	"Тамара": {
		BestFor:    "силовые тренировки, реабилитация колен, таза и позвоночника",
		Experience: "опыт с 2008 года",
	},
	"Дарья": {
		BestFor:    "реабилитация после травм и операций, нейрореабилитация",
		Experience: "опыт с 2018 года",
	},
	"Марина": {
		BestFor: "мягкий подход, идеально для новичков",
	},
	"Мария": {
		BestFor: "классический пилатес, интенсивные тренировки",
	},
}

var FAQ = []FAQItem{
	{
		Question: "Что взять с собой на первое занятие?",
		Answer: "Удобную спортивную одежду и носки (лучше нескользящие). " +
			"Коврики и весь инвентарь есть в студии, вода в кулере.",
	},
	{
		Question: "Как отменить или перенести запись?",
		Answer: "Через раздел «Мои записи» в меню. Отмена и перенос бесплатны " +
			"за 20 и более часов до начала занятия. При более поздней отмене " +
			"действуют правила студии.",
	},
	{
		Question: "Я никогда не занимался пилатесом. С чего начать?",
		Answer: "Начните со Стартовой персональной тренировки (2 400 ₽). " +
			"Тренер оценит вашу подготовку и подберёт программу.",
	},
	{
		Question: "Можно ли заниматься при беременности?",
		Answer: "Да, у нас есть тренеры со специализацией. Перед записью " +
			"рекомендуем консультацию с тренером и разрешение врача.",
	},
	{
		Question: "Как оплатить занятие?",
		Answer: "Оплата онлайн при записи через бота. Предоплата 100% " +
			"подтверждает вашу запись.",
	},
	{
		Question: "Сколько длится тренировка?",
		Answer:   "Стандартное занятие длится 55 минут.",
	},
}

// Review links offered after a positive feedback reply.
const (
	YandexMapsReviewURL = "https://yandex.ru/maps/org/pilates_guru/69364383319/reviews/"
	DGISReviewURL       = "https://2gis.ru/lyubertsy/firm/70000001094262672"
)

// UnavailableMessage is shown whenever a gateway has no credentials.
func UnavailableMessage() string {
	return "Онлайн-запись временно недоступна. Позвоните нам: " + Studio.Phone
}

// CallUsMessage prefixes an apology with the studio phone.
func CallUsMessage(text string) string {
	return text + " Позвоните нам: " + Studio.Phone
}
