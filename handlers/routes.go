package handlers

import (
	"github.com/VanitasCaesar1/clinic/middleware"
	"github.com/VanitasCaesar1/clinic/models"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Routes groups the API handlers mounted under /api.
type Routes struct {
	User     *UserHandler
	Doctor   *DoctorHandler
	Admin    *AdminHandler
	Message  *MessageHandler
	Pharmacy *PharmacyHandler
	Order    *OrderHandler

	Tokens middleware.TokenVerifier
	Logger *zap.Logger
}

func (r Routes) Mount(app fiber.Router) {
	userAuth := middleware.NewAuthMiddleware(r.Logger, r.Tokens, models.RoleUser).Handler()
	doctorAuth := middleware.NewAuthMiddleware(r.Logger, r.Tokens, models.RoleDoctor).Handler()
	adminAuth := middleware.NewAuthMiddleware(r.Logger, r.Tokens, models.RoleAdmin).Handler()
	chatAuth := middleware.NewAuthMiddleware(r.Logger, r.Tokens, models.RoleUser, models.RoleDoctor).Handler()

	api := app.Group("/api")

	admin := api.Group("/admin")
	admin.Post("/login", r.Admin.LoginAdmin)
	admin.Post("/add-doctor", adminAuth, r.Admin.AddDoctor)
	admin.Get("/all-doctors", adminAuth, r.Admin.AllDoctors)
	admin.Post("/change-availability", adminAuth, r.Admin.ChangeAvailability)
	admin.Get("/appointments", adminAuth, r.Admin.Appointments)
	admin.Post("/cancel-appointment", adminAuth, r.Admin.CancelAppointment)
	admin.Get("/dashboard", adminAuth, r.Admin.Dashboard)

	doctor := api.Group("/doctor")
	doctor.Get("/list", r.Doctor.AvailableDoctors)
	doctor.Get("/get-all-available-doctors", r.Doctor.AvailableDoctors)
	doctor.Post("/login", r.Doctor.LoginDoctor)
	doctor.Get("/appointmentsDoctor", doctorAuth, r.Doctor.Appointments)
	doctor.Post("/change-appointment-status", doctorAuth, r.Doctor.ChangeAppointmentStatus)
	doctor.Post("/cancel-appointment", doctorAuth, r.Doctor.CancelAppointment)
	doctor.Get("/dashboard", doctorAuth, r.Doctor.Dashboard)
	doctor.Get("/profile", doctorAuth, r.Doctor.GetProfile)
	doctor.Post("/update-profile", doctorAuth, r.Doctor.UpdateProfile)

	user := api.Group("/user")
	user.Post("/register", r.User.RegisterUser)
	user.Post("/login", r.User.LoginUser)
	user.Get("/profile", userAuth, r.User.GetProfile)
	user.Post("/edit-profile", userAuth, r.User.EditProfile)
	user.Post("/logout", userAuth, r.User.Logout)
	user.Post("/book-appointment", userAuth, r.User.BookAppointment)
	user.Get("/my-appointments", userAuth, r.User.MyAppointments)
	user.Post("/cancel-appointment", userAuth, r.User.CancelAppointment)
	user.Post("/payment-razorpay", userAuth, r.User.PaymentRazorpay)
	user.Post("/verify-payment", userAuth, r.User.VerifyPayment)

	messages := api.Group("/messages", chatAuth)
	messages.Get("/appointment/:appointmentId", r.Message.GetChatByAppointment)
	messages.Post("/appointment/:appointmentId/message", r.Message.SendMessage)
	messages.Get("/my-chats", r.Message.MyChats)

	pharmacy := api.Group("/pharmacy")
	pharmacy.Get("/all-medicines", r.Pharmacy.AllMedicines)
	pharmacy.Post("/add-medicine", adminAuth, r.Pharmacy.AddMedicine)
	pharmacy.Post("/update-stock", adminAuth, r.Pharmacy.UpdateStock)
	pharmacy.Post("/remove-medicine", adminAuth, r.Pharmacy.RemoveMedicine)
	pharmacy.Post("/edit-medicine/:medicineId", adminAuth, r.Pharmacy.EditMedicine)

	// specific order routes before /:id
	orders := api.Group("/orders")
	orders.Post("/medicine-payment", userAuth, r.Order.MedicinePayment)
	orders.Post("/verify-payment-medicine", userAuth, r.Order.VerifyMedicinePayment)
	orders.Get("/user-orders", userAuth, r.Order.UserOrders)
	orders.Get("/orders", adminAuth, r.Order.AllOrders)
	orders.Get("/:id", adminAuth, r.Order.GetOrder)
}
