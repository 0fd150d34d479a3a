package test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/relabs-tech/docquery/core/client"
	"github.com/relabs-tech/docquery/core/data"
	"github.com/relabs-tech/docquery/core/query"
)

const configurationJSON = `{
	"collections": [
	  {
		"resource": "user",
		"collection": "users",
		"max_page_size": 2
	  },
	  {
		"resource": "device",
		"schema_id": "https://docquery.relabs.tech/schemas/device.json"
	  }
	]
}`

const deviceSchema = `{
	"$id": "https://docquery.relabs.tech/schemas/device.json",
	"type": "object",
	"required": ["serial"],
	"properties": {
		"serial": {"type": "string"},
		"owner": {"type": "string"}
	}
}`

type address struct {
	City string `json:"city"`
}

type pet struct {
	Kind string `json:"kind"`
	Age  int    `json:"age"`
}

type user struct {
	Name    string  `json:"name"`
	Age     int     `json:"age"`
	Address address `json:"address"`
	Pets    []pet   `json:"pets"`
}

var fixtures = []user{
	{Name: "alice", Age: 30, Address: address{City: "berlin"}, Pets: []pet{{"cat", 3}, {"dog", 5}}},
	{Name: "bob", Age: 25, Address: address{City: "paris"}, Pets: []pet{{"dog", 1}}},
	{Name: "carol", Age: 41, Address: address{City: "berlin"}, Pets: []pet{}},
}

type BackendTestSuite struct {
	IntegrationTestSuite
}

func TestBackendIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	s := new(BackendTestSuite)
	s.Config = configurationJSON
	s.Schemas = []string{deviceSchema}
	suite.Run(t, s)
}

func (s *BackendTestSuite) SetupTest() {
	s.IntegrationTestSuite.SetupTest()
	inserted, err := s.Client.Collection("user").Insert(fixtures)
	s.Require().NoError(err)
	s.Require().Equal(len(fixtures), inserted)
}

func (s *BackendTestSuite) names(q query.Query) []string {
	var result []user
	_, err := s.Client.Collection("user").
		WithSort(data.SortField{Field: "name", Order: data.Ascending}).
		WithPageSize(2).
		List(q, &result)
	s.Require().NoError(err)
	names := []string{}
	for _, u := range result {
		names = append(names, u.Name)
	}
	return names
}

func (s *BackendTestSuite) TestQuery() {
	inBerlin := query.Where("address", query.Match(query.ObjMatchOf(query.Where("city", query.Equal("berlin")))))
	s.Equal([]string{"alice", "carol"}, s.names(inBerlin))

	withOldDog := query.Where("pets", query.Match(query.AllElemMatch(
		query.Where("kind", query.Equal("dog")).Where("age", query.Match(query.Gt(2))),
	)))
	s.Equal([]string{"alice"}, s.names(withOldDog))

	noPets := query.Where("pets", query.Match(query.EmptyArray()))
	s.Equal([]string{"carol"}, s.names(noPets))

	young := query.Or(
		query.Where("age", query.Match(query.Lt(26))),
		query.Where("name", query.Equal("carol")),
	)
	s.Equal([]string{"bob", "carol"}, s.names(young))
}

func (s *BackendTestSuite) TestPaging() {
	collection := s.Client.Collection("user").WithSort(data.SortField{Field: "age", Order: data.Descending})
	var all []user
	for p := collection.FirstPage(query.Query{}); p.HasData(); p = p.Next() {
		var page []user
		_, err := p.Get(&page)
		s.Require().NoError(err)
		all = append(all, page...)
	}
	s.Require().Len(all, 3)
	s.Equal("carol", all[0].Name)
	s.Equal("bob", all[2].Name)
}

func (s *BackendTestSuite) TestCountExistsAndOne() {
	users := s.Client.Collection("user")
	inBerlin := query.Where("address.city", query.Equal("berlin"))

	count, err := users.Count(inBerlin)
	s.Require().NoError(err)
	s.Equal(int64(2), count)

	exists, err := users.Exists(query.Where("name", query.Equal("dave")))
	s.Require().NoError(err)
	s.False(exists)

	var bob user
	_, err = users.One(query.Where("name", query.Equal("bob")), &bob)
	s.Require().NoError(err)
	s.Equal("paris", bob.Address.City)

	status, err := users.One(query.Where("name", query.Equal("dave")), &bob)
	s.Equal(http.StatusNotFound, status)
	s.Error(err)
}

func (s *BackendTestSuite) TestUpdateAndDelete() {
	users := s.Client.Collection("user")
	inBerlin := query.Where("address.city", query.Equal("berlin"))

	_, err := users.Update(inBerlin, data.Update{"address.city": "munich"})
	s.Require().NoError(err)
	s.Equal([]string{"alice", "carol"}, s.names(query.Where("address.city", query.Equal("munich"))))

	_, err = users.Delete(query.Where("age", query.Match(query.Gte(30))))
	s.Require().NoError(err)
	s.Equal([]string{"bob"}, s.names(query.Query{}))
}

func (s *BackendTestSuite) TestInsertIsValidated() {
	devices := s.Client.Collection("device")

	inserted, err := devices.Insert([]map[string]interface{}{{"serial": "123", "owner": "alice"}})
	s.Require().NoError(err)
	s.Equal(1, inserted)

	_, err = devices.Insert([]map[string]interface{}{{"owner": "bob"}})
	var rerr *client.ResponseError
	s.Require().True(errors.As(err, &rerr))
	s.Equal(http.StatusBadRequest, rerr.StatusCode)

	count, err := devices.Count(query.Query{})
	s.Require().NoError(err)
	s.Equal(int64(1), count)
}

func (s *BackendTestSuite) TestMalformedQuery() {
	status, err := s.Client.RawPost("/data/user/query", []byte(`{"query": {"age": {"$near": 1}}}`), nil)
	s.Equal(http.StatusBadRequest, status)
	s.Error(err)
}
