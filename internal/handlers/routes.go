package handlers

import "github.com/gin-gonic/gin"

// Handlers groups everything mounted under /api.
type Handlers struct {
	Auth         *AuthHandler
	Users        *UserHandler
	Messages     *MessageHandler
	ChatRequests *ChatRequestHandler
}

// Register mounts the REST surface. protect guards every route that needs a
// session.
func (h Handlers) Register(router gin.IRouter, protect gin.HandlerFunc) {
	api := router.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/signup", h.Auth.Signup)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.POST("/logout", h.Auth.Logout)
	authGroup.GET("/check", protect, h.Auth.Check)
	authGroup.PUT("/update-profile", protect, h.Auth.UpdateProfile)
	authGroup.PUT("/change-password", protect, h.Auth.ChangePassword)
	authGroup.POST("/verify-email", h.Auth.VerifyEmail)
	authGroup.POST("/forgot-password", h.Auth.ForgotPassword)
	authGroup.POST("/reset-password/:token", h.Auth.ResetPassword)

	messages := api.Group("/messages", protect)
	messages.GET("/users", h.Users.ListPartners)
	messages.GET("/chat-requests", h.ChatRequests.List)
	messages.GET("/:id", h.Messages.History)
	messages.POST("/send/:id", h.Messages.Send)
	messages.PUT("/update/:id", h.Messages.Update)
	messages.PUT("/react/:id", h.Messages.React)
	messages.DELETE("/delete/:id", h.Messages.Delete)
	messages.DELETE("/chat/:userId", h.Messages.DeleteChat)
	messages.POST("/chat-request/:receiverId", h.ChatRequests.Send)
	messages.POST("/accept-request/:senderId", h.ChatRequests.Accept)

	users := api.Group("/users", protect)
	users.GET("/search", h.Users.Search)
	users.GET("/user/:id", h.Users.GetUser)
}
