package domain

// Customer is the shopper profile returned by the account backend.
type Customer struct {
	ID         int      `json:"id"`
	Username   string   `json:"username"`
	Email      string   `json:"email"`
	FirstName  string   `json:"firstName,omitempty"`
	LastName   string   `json:"lastName,omitempty"`
	Image      string   `json:"image,omitempty"`
	Age        int      `json:"age,omitempty"`
	Gender     string   `json:"gender,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	BirthDate  string   `json:"birthDate,omitempty"`
	University string   `json:"university,omitempty"`
	Address    *Address `json:"address,omitempty"`
}

type Address struct {
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Order is a past purchase. Amounts are Money like cart totals.
type Order struct {
	ID              int            `json:"id"`
	UserID          int            `json:"userId"`
	Products        []OrderProduct `json:"products"`
	Total           Money          `json:"total"`
	DiscountedTotal Money          `json:"discountedTotal"`
	TotalProducts   int            `json:"totalProducts"`
	TotalQuantity   int            `json:"totalQuantity"`
}

type OrderProduct struct {
	ID                 int    `json:"id"`
	Title              string `json:"title"`
	Price              Money  `json:"price"`
	Quantity           int    `json:"quantity"`
	Total              Money  `json:"total"`
	DiscountPercentage string `json:"discountPercentage"`
	DiscountedTotal    Money  `json:"discountedTotal"`
	Thumbnail          string `json:"thumbnail,omitempty"`
}
