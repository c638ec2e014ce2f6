/*
Package router maps URL fragments of the monitor's single-page application to views.

The table is declarative and resolved on the server, so the browser only has to forward its
location hash and render the view it is told to render. Resolution is deterministic: routes
are tried in declaration order, depth-first through children, and whatever does not match
ends at the catch-all NotFound route.

Navigation passes through an ordered list of Guards before it is committed. The default
guard, AllowAll, performs no check; it is the hook point for access control.
*/
package router
