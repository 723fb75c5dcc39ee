package db

const query = `
SELECT id
FROM users
`
