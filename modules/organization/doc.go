// Package organization exposes the tenant service over HTTP.
//
// Routes:
//
//	POST   /org/create                          create an organization
//	GET    /org/get?organization_name=          fetch its summary
//	PUT    /org/update                          change it (Bearer token)
//	DELETE /org/delete?organization_name=       remove it (Bearer token)
//	POST   /admin/login                         issue an admin token
//	GET    /stats                               registry and connection cache counters
//
// Organization routes and login are rate limited per client IP when limiters
// are configured. Every failure is rendered as the handler error envelope.
//
//	srv := organization.NewServer(svc,
//		organization.WithOrgLimiter(orgLimiter),
//		organization.WithLoginLimiter(loginLimiter),
//		organization.WithLogger(log),
//	)
//	r.Mount("/", srv.Handle())
package organization
