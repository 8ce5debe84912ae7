package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rfidaccess/internal/person"
)

func (h *Handler) ListPersons(c *gin.Context) {
	list, err := h.Persons.List(c.Request.Context(), query(c, "type"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(list))
}

func (h *Handler) CreatePerson(c *gin.Context) {
	var in person.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badJSON(c)
		return
	}
	p, err := h.Persons.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPerson(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	p, err := h.Persons.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePerson(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var in person.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badJSON(c)
		return
	}
	p, err := h.Persons.Update(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePerson(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.Persons.Remove(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "person deleted", "id": id})
}

func (h *Handler) Search(c *gin.Context) {
	list, err := h.Persons.Search(c.Request.Context(), query(c, "q"), query(c, "type"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(list))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
