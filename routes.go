package main

import "github.com/gin-gonic/gin"

func SetupRoutes(r *gin.Engine) {

	// Public Routes
	r.POST("/auth/register", Signup)
	r.POST("/auth/register/professor", SignupProfessor)
	r.POST("/auth/register/staff", SignupStaff)
	r.POST("/auth/login", Login)
	r.POST("/auth/forgot-password", ForgotPassword)
	r.POST("/auth/reset-password/:token", ResetPassword)

	r.GET("/events", ListEvents)
	r.GET("/events/:id", GetEvent)
	r.GET("/circles", ListCircles)
	r.GET("/circles/:id", GetCircle)
	r.GET("/verses/daily", DailyVerse)

	// Protected Routes
	authorized := r.Group("/api")
	authorized.Use(AuthMiddleware())
	{
		// PARTICIPANT
		authorized.GET("/dashboard", Dashboard)
		authorized.GET("/profile", Profile)
		authorized.PUT("/profile", UpdateProfile)
		authorized.GET("/my-events", MyEvents)

		// NOTIFICATIONS
		authorized.GET("/notifications", GetNotifications)
		authorized.POST("/notifications/:id/read", MarkNotificationRead)
		authorized.POST("/notifications/read-all", MarkAllNotificationsRead)

		// EVENT REGISTRATION
		authorized.POST("/events/:id/register", RegisterForEventHandler)
		authorized.POST("/events/:id/cancel", CancelRegistrationHandler)

		// CIRCLES
		authorized.POST("/circles/:id/join", JoinCircleHandler)
		authorized.POST("/circles/:id/leave", LeaveCircleHandler)
		authorized.GET("/circles/:id/sessions", CircleSessions)
		authorized.POST("/circles/:id/sessions", CreateSession)
		authorized.GET("/circles/:id/roster", CircleRoster)
		authorized.POST("/circles/:id/files", UploadCircleFile)
		authorized.GET("/circle-files/:id/download", DownloadCircleFile)

		// SESSIONS
		authorized.GET("/sessions/:id", GetSession)
		authorized.PUT("/sessions/:id/held", HoldSession)
		authorized.POST("/sessions/:id/attendance", MarkSessionAttendanceHandler)
		authorized.POST("/sessions/:id/files", UploadSessionFile)
		authorized.GET("/session-files/:id/download", DownloadSessionFile)

		// AI Q&A
		authorized.POST("/ai/ask", AskQuran)
		authorized.GET("/ai/history", AIHistory)
		authorized.GET("/ai/statistics", AIStatistics)

		// STAFF
		staff := authorized.Group("/")
		staff.Use(ManagerOnly())
		{
			staff.GET("/events/:id/attendees", EventAttendees)
			staff.PUT("/registrations/:id/attendance", MarkEventAttendanceHandler)
		}

		// ADMIN
		admin := authorized.Group("/admin")
		admin.Use(AdminOnly())
		{
			admin.GET("/dashboard", AdminDashboard)
			admin.GET("/events", AdminEvents)
			admin.POST("/events", CreateEvent)
			admin.PUT("/events/:id", UpdateEvent)
			admin.DELETE("/events/:id", DeleteEvent)
			admin.POST("/circles", CreateCircle)
			admin.DELETE("/circles/:id", DeleteCircle)
			admin.GET("/users", AdminUsers)
			admin.POST("/users/:id/toggle", ToggleUserStatus)
			admin.PUT("/users/:id/role", ChangeUserRole)
			admin.POST("/users/:id/verify", VerifyUser)
			admin.GET("/reports", AdminReports)
			admin.POST("/announcements", CreateAnnouncement)
			admin.GET("/announcements", ListAnnouncements)
		}
	}
}
