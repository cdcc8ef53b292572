// Package http provides the request and response helpers used by
// controllers.
//
// # Request
//
//	req := gohttp.NewRequest(r)
//	member := req.Query("member")
//	price  := req.QueryInt("price", 0)
//	id     := req.RouteParam("id")
//
// # Response
//
//	res := gohttp.NewResponse(w)
//	res.Success(order)              // 200 {"data": order}
//	res.BadRequest("price required") // 400 {"message": "..."}
//	res.Fail(err)                   // status chosen from container errors
package http
